// Package opus transcodes songs into Opus frames for Discord voice playback.
//
// Frames travel between packages in a minimal binary format: concatenated
// length-prefixed frames ([uint16 LE length][opus bytes]). No headers, no metadata.
//
// Encode runs FFmpeg over any audio stream and produces length-prefixed frames.
// FrameReader reads them back one packet at a time for the audio player.
package opus
