package opus

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"strconv"

	"github.com/jonas747/ogg"
)

type EncodeOptions struct {
	// FFmpegPath is the ffmpeg binary to run. Defaults to "ffmpeg" on PATH.
	FFmpegPath string
	// Bitrate in bits per second. Defaults to 64000.
	Bitrate int
}

func (o EncodeOptions) args() []string {
	bitrate := o.Bitrate
	if bitrate <= 0 {
		bitrate = 64000
	}
	return []string{
		"-i", "pipe:0",
		"-vn",
		"-map", "0:a",
		"-acodec", "libopus",
		"-f", "ogg",
		"-vbr", "on",
		"-compression_level", "10",
		"-ar", "48000",
		"-ac", "2",
		"-b:a", strconv.Itoa(bitrate),
		"-application", "audio",
		"-frame_duration", "20",
		"-packet_loss", "1",
		"-threads", "0",
		"-loglevel", "warning",
		"pipe:1",
	}
}

// Encode takes any audio as an io.Reader, runs FFmpeg to transcode it to Opus,
// and returns an io.ReadCloser that produces length-prefixed Opus frames.
// Cancelling ctx kills FFmpeg. The returned io.ReadCloser must be closed
// to clean up the FFmpeg process.
func Encode(ctx context.Context, r io.Reader, opts EncodeOptions) (io.ReadCloser, error) {
	path := opts.FFmpegPath
	if path == "" {
		path = "ffmpeg"
	}
	ffmpeg := exec.CommandContext(ctx, path, opts.args()...)
	ffmpeg.Stdin = r

	stdout, err := ffmpeg.StdoutPipe()
	if err != nil {
		return nil, err
	}

	if err := ffmpeg.Start(); err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()

	go func() {
		defer pw.Close()

		err := demux(stdout, pw)
		waitErr := ffmpeg.Wait()
		if err == nil && waitErr != nil && ctx.Err() == nil {
			err = waitErr
		}
		if err != nil {
			pw.CloseWithError(err)
		}
	}()

	return &encodeCloser{ReadCloser: pr, cmd: ffmpeg}, nil
}

// demux copies Opus packets out of an Ogg stream as length-prefixed frames.
func demux(r io.Reader, w io.Writer) error {
	decoder := ogg.NewPacketDecoder(ogg.NewDecoder(r))

	// Skip the first 2 OGG metadata packets.
	skip := 2
	for {
		packet, _, err := decoder.Decode()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return err
		}
		if skip > 0 {
			skip--
			continue
		}
		if len(packet) == 0 {
			continue
		}

		if err := WriteFrame(w, packet); err != nil {
			// Reader side closed early.
			if errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return err
		}
	}
}

// encodeCloser wraps the pipe reader and ensures the FFmpeg process is cleaned up.
type encodeCloser struct {
	io.ReadCloser
	cmd *exec.Cmd
}

func (e *encodeCloser) Close() error {
	err := e.ReadCloser.Close()
	// Kill FFmpeg if still running (e.g. pipe closed early).
	if e.cmd.Process != nil {
		_ = e.cmd.Process.Kill()
	}
	return err
}
