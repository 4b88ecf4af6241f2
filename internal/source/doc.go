// Package source resolves YouTube URLs into song metadata and audio streams.
//
// Metadata lookups are cached, in Redis when configured and in memory
// otherwise. Audio streams are read ahead of playback to absorb network jitter.
package source
