// Package history records which songs were played, either to the log or to
// a capped Redis stream that the CLI can read back.
package history
