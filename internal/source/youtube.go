package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/kkdai/youtube/v2"
)

const DefaultBufferBytes = 1 << 25

var ErrNoAudioFormat = errors.New("source: no audio format available")

// Metadata describes a resolved video.
type Metadata struct {
	Title string
	// URL is the canonical watch URL.
	URL string
}

type videoClient interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetStreamContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (io.ReadCloser, int64, error)
}

var _ videoClient = (*youtube.Client)(nil)

type YouTubeOptions struct {
	// Cache stores metadata lookups. Defaults to an in-memory cache.
	Cache MetadataCache
	// BufferBytes is how far ahead of the reader the audio stream is fetched.
	BufferBytes int
}

// YouTube is the external audio source backed by kkdai/youtube.
type YouTube struct {
	client      videoClient
	cache       MetadataCache
	bufferBytes int
}

func NewYouTube(client *youtube.Client, opts YouTubeOptions) *YouTube {
	if client == nil {
		client = &youtube.Client{}
	}
	return newYouTube(client, opts)
}

func newYouTube(client videoClient, opts YouTubeOptions) *YouTube {
	if opts.Cache == nil {
		opts.Cache = NewMemoryMetadataCache(DefaultMetadataTTL)
	}
	if opts.BufferBytes <= 0 {
		opts.BufferBytes = DefaultBufferBytes
	}
	return &YouTube{
		client:      client,
		cache:       opts.Cache,
		bufferBytes: opts.BufferBytes,
	}
}

var youtubeHosts = map[string]struct{}{
	"youtube.com":       {},
	"www.youtube.com":   {},
	"m.youtube.com":     {},
	"music.youtube.com": {},
	"youtu.be":          {},
}

// videoID returns the ID of a direct video URL. Bare IDs and non-YouTube
// hosts are rejected.
func videoID(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if _, ok := youtubeHosts[strings.ToLower(u.Hostname())]; !ok {
		return "", fmt.Errorf("unsupported host %q", u.Hostname())
	}
	return youtube.ExtractVideoID(u.String())
}

// Validate reports whether rawURL is a video URL this source can resolve.
func (y *YouTube) Validate(rawURL string) bool {
	_, err := videoID(rawURL)
	return err == nil
}

func canonicalURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}

// Metadata returns the title and canonical URL of a video.
func (y *YouTube) Metadata(ctx context.Context, rawURL string) (Metadata, error) {
	id, err := videoID(rawURL)
	if err != nil {
		return Metadata{}, err
	}

	if md, ok, err := y.cache.Get(ctx, id); err != nil {
		slog.Warn("metadata cache lookup failed", "videoID", id, "error", err)
	} else if ok {
		return md, nil
	}

	video, err := y.client.GetVideoContext(ctx, canonicalURL(id))
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to get video %s: %w", id, err)
	}

	md := Metadata{Title: video.Title, URL: canonicalURL(video.ID)}
	if err := y.cache.Set(ctx, id, md); err != nil {
		slog.Warn("failed to cache metadata", "videoID", id, "error", err)
	}
	return md, nil
}

// bestAudioFormat prefers audio-only formats with the highest bitrate and
// falls back to any format carrying audio.
func bestAudioFormat(formats youtube.FormatList) (*youtube.Format, error) {
	var best *youtube.Format
	withAudio := formats.WithAudioChannels()
	for i := range withAudio {
		f := &withAudio[i]
		if !strings.HasPrefix(f.MimeType, "audio/") {
			continue
		}
		if best == nil || f.Bitrate > best.Bitrate {
			best = f
		}
	}
	if best != nil {
		return best, nil
	}
	if len(withAudio) > 0 {
		return &withAudio[0], nil
	}
	return nil, ErrNoAudioFormat
}

// OpenAudioStream opens the best audio-only stream of a video.
// The stream is fetched ahead of the reader up to the configured buffer size.
func (y *YouTube) OpenAudioStream(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	id, err := videoID(rawURL)
	if err != nil {
		return nil, err
	}

	video, err := y.client.GetVideoContext(ctx, canonicalURL(id))
	if err != nil {
		return nil, fmt.Errorf("failed to get video %s: %w", id, err)
	}

	format, err := bestAudioFormat(video.Formats)
	if err != nil {
		return nil, fmt.Errorf("video %s: %w", id, err)
	}

	stream, _, err := y.client.GetStreamContext(ctx, video, format)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream for video %s: %w", id, err)
	}

	slog.Debug("opened audio stream", "videoID", id, "itag", format.ItagNo, "mimeType", format.MimeType, "bitrate", format.Bitrate)
	return NewReadAhead(stream, y.bufferBytes), nil
}
