// Package changesync runs the long-lived loop against the upstream changes
// feed that keeps cached entries in sync with upstream edits and deletions.
// It resumes from a cursor file persisted to disk and never exits on error;
// failures are logged and followed by an exponential backoff sleep.
package changesync
