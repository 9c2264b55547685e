package log

import "strings"

// logControlCharReplacer escapes control characters that can be used for log
// injection (CWE-117). Newlines and carriage returns in log messages can forge
// fake log entries or inject false audit trail lines.
var logControlCharReplacer = strings.NewReplacer(
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// SanitizeLogString escapes control characters in a single string value.
func SanitizeLogString(s string) string {
	return logControlCharReplacer.Replace(s)
}

// sanitizeLogArgs escapes control characters in all string-typed arguments.
// Non-string arguments are passed through unchanged.
func sanitizeLogArgs(args []any) []any {
	sanitized := make([]any, len(args))
	for i, arg := range args {
		if s, ok := arg.(string); ok {
			sanitized[i] = SanitizeLogString(s)
		} else {
			sanitized[i] = arg
		}
	}

	return sanitized
}
