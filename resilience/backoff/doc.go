// Package backoff provides exponential backoff utilities with jitter support
// for the retry wrappers in this library.
package backoff
