package codec

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os/exec"
	"strings"
	"testing"
	"time"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{uint8(x * 10), uint8(y * 10), 128, 255})
		}
	}
	return img
}

func TestDecodeImageFormats(t *testing.T) {
	src := testImage(8, 6)
	tests := []struct {
		name   string
		encode func(*bytes.Buffer) error
	}{
		{"png", func(b *bytes.Buffer) error { return png.Encode(b, src) }},
		{"bmp", func(b *bytes.Buffer) error { return bmp.Encode(b, src) }},
		{"tiff", func(b *bytes.Buffer) error { return tiff.Encode(b, src, nil) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := tt.encode(&buf); err != nil {
				t.Fatalf("encode: %v", err)
			}
			img, err := Images{}.DecodeImage(&buf)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 6 {
				t.Errorf("unexpected bounds %v", img.Bounds())
			}
		})
	}
}

func TestDecodeImageRejects(t *testing.T) {
	t.Run("garbage", func(t *testing.T) {
		if _, err := (Images{}).DecodeImage(strings.NewReader("not an image")); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("too large", func(t *testing.T) {
		var buf bytes.Buffer
		_ = png.Encode(&buf, testImage(10, 10))
		_, err := Images{MaxPixels: 50}.DecodeImage(&buf)
		if !errors.Is(err, ErrImageTooLarge) {
			t.Errorf("expected ErrImageTooLarge, got %v", err)
		}
	})

	t.Run("zero sized", func(t *testing.T) {
		var buf bytes.Buffer
		_ = png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 0, 0)))
		if _, err := (Images{}).DecodeImage(&buf); err == nil {
			t.Error("expected zero sized image to fail")
		}
	})
}

func TestPCM(t *testing.T) {
	raw := []byte{0x01, 0x00, 0xff, 0xff, 0x00, 0x80, 0x10, 0x00, 0x7f}
	p := FromS16LE(raw, 4, 2)

	if p.Frames() != 2 {
		t.Fatalf("expected 2 frames, got %d", p.Frames())
	}
	want := []int16{1, -1, -32768, 16}
	for i, s := range want {
		if p.Samples[i] != s {
			t.Errorf("sample %d = %d, want %d", i, p.Samples[i], s)
		}
	}
	if p.Duration() != 500*time.Millisecond {
		t.Errorf("unexpected duration %v", p.Duration())
	}

	var nilPCM *PCM
	if nilPCM.Frames() != 0 || nilPCM.Duration() != 0 {
		t.Error("nil PCM should be empty")
	}
}

func TestTicks(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		rate int
		want int64
	}{
		{"zero", 0, 44100, 0},
		{"sub tick", 10 * time.Millisecond, 24, 0},
		{"one frame", 1001 * time.Millisecond / 24, 24, 1},
		{"fractional", 1234567 * time.Microsecond, 1000, 1234},
		{"long audio", 60 * time.Hour, 44100, 60 * 3600 * 44100},
		{"years of frames", 13 * 365 * 24 * time.Hour, 24, 13 * 365 * 24 * 3600 * 24},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Ticks(tt.d, tt.rate); got != tt.want {
				t.Errorf("Ticks(%v, %d) = %d, want %d", tt.d, tt.rate, got, tt.want)
			}
		})
	}
}

func TestElapsed(t *testing.T) {
	if got := Elapsed(60*3600*44100, 44100); got != 60*time.Hour {
		t.Errorf("expected 60h, got %v", got)
	}
	if got := Elapsed(45, 30); got != 1500*time.Millisecond {
		t.Errorf("expected 1.5s, got %v", got)
	}
	if got := Elapsed(1, 3); got != 333333333*time.Nanosecond {
		t.Errorf("expected truncation to the nanosecond, got %v", got)
	}
}

func TestStderrTail(t *testing.T) {
	tail := NewStderrTail(2)
	_, _ = tail.Write([]byte("line one\nline two\n"))
	_, _ = tail.Write([]byte("\nline three\r\nline fo"))
	_, _ = tail.Write([]byte("ur"))

	if got := tail.String(); got != "line three\nline four" {
		t.Errorf("unexpected tail %q", got)
	}
}

func TestFFmpegAudioDecode(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	_, err := FFmpegAudio{Rate: 8000, Channels: 1}.DecodeAudio(context.Background(), strings.NewReader("definitely not audio"))
	if err == nil {
		t.Fatal("expected decode failure")
	}
}
