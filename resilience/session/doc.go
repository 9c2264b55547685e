// Package session manages the lifecycle of transactional store sessions:
// breaker-protected acquisition, commit on success, rollback on failure, and
// guaranteed release on every exit path.
package session
