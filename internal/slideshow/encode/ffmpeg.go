package encode

import (
	"context"
	"image"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"montage/internal/pkg/errors"
	"montage/internal/pkg/logger"
	"montage/internal/slideshow/codec"
)

const (
	DefaultPreset       = "veryfast"
	DefaultCRF          = 23
	DefaultAudioBitrate = "192k"
)

// FFmpeg encodes H.264/AAC into MP4 by piping raw RGBA frames to ffmpeg's
// stdin and PCM to an extra descriptor (pipe:3).
type FFmpeg struct {
	Path         string
	Preset       string
	CRF          int
	AudioBitrate string
	Log          *logger.Logger

	ctx       context.Context
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	tail      *codec.StderrTail
	audioDone chan error
	format    Format
	frames    int
	err       error
	closed    bool
	mu        sync.Mutex
}

// NewFFmpeg returns a factory producing encoders that share the settings.
func NewFFmpeg(path, preset string, crf int, audioBitrate string, log *logger.Logger) Factory {
	return func() Encoder {
		return &FFmpeg{Path: path, Preset: preset, CRF: crf, AudioBitrate: audioBitrate, Log: log}
	}
}

func (e *FFmpeg) args(f Format, withAudio bool, dst string) []string {
	preset := e.Preset
	if preset == "" {
		preset = DefaultPreset
	}
	crf := e.CRF
	if crf <= 0 {
		crf = DefaultCRF
	}
	abr := e.AudioBitrate
	if abr == "" {
		abr = DefaultAudioBitrate
	}

	args := []string{
		"-hide_banner", "-loglevel", "error", "-nostdin", "-y",
		"-f", "rawvideo", "-pix_fmt", "rgba",
		"-s", strconv.Itoa(f.Width) + "x" + strconv.Itoa(f.Height),
		"-r", strconv.Itoa(f.FPS),
		"-i", "pipe:0",
	}
	if withAudio {
		args = append(args,
			"-f", "s16le",
			"-ar", strconv.Itoa(f.AudioRate),
			"-ac", strconv.Itoa(f.AudioChannels),
			"-i", "pipe:3",
			"-map", "0:v:0", "-map", "1:a:0",
		)
	}
	args = append(args,
		"-c:v", "libx264", "-preset", preset,
		"-crf", strconv.Itoa(crf),
		"-pix_fmt", "yuv420p",
	)
	if withAudio {
		args = append(args, "-c:a", "aac", "-b:a", abr)
	} else {
		args = append(args, "-an")
	}
	return append(args, "-movflags", "+faststart", "-f", "mp4", dst)
}

func (e *FFmpeg) Begin(ctx context.Context, f Format, audio io.Reader, dst string) error {
	if f.Width <= 0 || f.Height <= 0 || f.FPS <= 0 {
		return errors.Internalf("invalid encoder format %dx%d@%d", f.Width, f.Height, f.FPS)
	}
	if audio != nil && (f.AudioRate <= 0 || f.AudioChannels <= 0) {
		return errors.Internalf("invalid audio format %dHz/%dch", f.AudioRate, f.AudioChannels)
	}
	path := e.Path
	if path == "" {
		path = "ffmpeg"
	}
	log := e.Log
	if log == nil {
		log = logger.Discard()
	}

	e.ctx = ctx
	e.format = f
	e.tail = codec.NewStderrTail(20)
	e.cmd = exec.CommandContext(ctx, path, e.args(f, audio != nil, dst)...)
	e.cmd.Stderr = e.tail
	e.cmd.WaitDelay = 5 * time.Second

	stdin, err := e.cmd.StdinPipe()
	if err != nil {
		return errors.Encoder(err, "")
	}
	e.stdin = stdin

	var pr, pw *os.File
	if audio != nil {
		pr, pw, err = os.Pipe()
		if err != nil {
			return Classify(ctx, err, "")
		}
		e.cmd.ExtraFiles = []*os.File{pr}
	}

	if err := e.cmd.Start(); err != nil {
		if pr != nil {
			pr.Close()
			pw.Close()
		}
		return Classify(ctx, err, err.Error())
	}
	if pr != nil {
		pr.Close()
		e.audioDone = make(chan error, 1)
		go func() {
			_, err := io.Copy(pw, audio)
			pw.Close()
			e.audioDone <- err
		}()
	}

	log.Debug("encoder started", "path", path, "width", f.Width, "height", f.Height, "fps", f.FPS, "audio", audio != nil)
	return nil
}

// EncodeFrame writes one frame. After the first failure every call returns
// the same error.
func (e *FFmpeg) EncodeFrame(img *image.RGBA) error {
	if e.err != nil {
		return e.err
	}
	if e.cmd == nil || e.closed {
		return errors.FailedPrecondition("encoder is not running")
	}
	w, h := e.format.Width, e.format.Height
	if img.Rect.Dx() != w || img.Rect.Dy() != h {
		return errors.Internalf("frame is %dx%d, encoder expects %dx%d", img.Rect.Dx(), img.Rect.Dy(), w, h)
	}

	var err error
	if img.Stride == 4*w {
		_, err = e.stdin.Write(img.Pix[:4*w*h])
	} else {
		for y := 0; y < h && err == nil; y++ {
			off := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
			_, err = e.stdin.Write(img.Pix[off : off+4*w])
		}
	}
	if err != nil {
		e.err = e.finish(err)
		return e.err
	}
	e.frames++
	return nil
}

// End closes the frame stream and waits for the file to be finalized.
func (e *FFmpeg) End() error {
	if e.err != nil {
		return e.err
	}
	if e.cmd == nil || e.closed {
		return errors.FailedPrecondition("encoder is not running")
	}
	e.err = e.finish(nil)
	return e.err
}

// finish closes stdin and reaps the process. writeErr is the frame write
// failure that triggered it, if any.
func (e *FFmpeg) finish(writeErr error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return e.err
	}
	e.closed = true

	e.stdin.Close()
	waitErr := e.cmd.Wait()
	var audioErr error
	if e.audioDone != nil {
		audioErr = <-e.audioDone
	}

	switch {
	case waitErr != nil:
		return Classify(e.ctx, waitErr, e.tail.String())
	case writeErr != nil:
		return Classify(e.ctx, writeErr, e.tail.String())
	case audioErr != nil:
		return Classify(e.ctx, audioErr, "audio stream was not fully consumed")
	}
	return nil
}

// Abort kills the encoder if it is still running.
func (e *FFmpeg) Abort() {
	e.mu.Lock()
	if e.cmd == nil || e.closed || e.cmd.Process == nil {
		e.mu.Unlock()
		return
	}
	_ = e.cmd.Process.Kill()
	e.mu.Unlock()
	if e.err == nil {
		e.err = e.finish(nil)
	}
}

// Frames reports how many frames were accepted.
func (e *FFmpeg) Frames() int { return e.frames }
