// Package audio plays Opus resources into a voice sink.
//
// A Player holds at most one Resource at a time. Every resource handed to
// Play ends with exactly one terminal Event on Events: EventIdle when the
// resource is exhausted or stopped, EventError when reading or sending a
// frame fails. A resource that is replaced by another Play, or cut off by
// Close, ends silently.
package audio
