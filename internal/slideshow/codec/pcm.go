package codec

import (
	"encoding/binary"
	"time"
)

// PCM is interleaved signed 16-bit audio. It is read-only once built.
type PCM struct {
	Samples  []int16
	Rate     int
	Channels int
}

// FromS16LE interprets little-endian 16-bit samples. A trailing odd byte or
// incomplete sample frame is dropped.
func FromS16LE(b []byte, rate, channels int) *PCM {
	if channels <= 0 {
		channels = 1
	}
	n := len(b) / 2
	n -= n % channels
	s := make([]int16, n)
	for i := range s {
		s[i] = int16(binary.LittleEndian.Uint16(b[2*i:]))
	}
	return &PCM{Samples: s, Rate: rate, Channels: channels}
}

// Frames is the number of sample frames (one sample per channel).
func (p *PCM) Frames() int {
	if p == nil || p.Channels <= 0 {
		return 0
	}
	return len(p.Samples) / p.Channels
}

func (p *PCM) Duration() time.Duration {
	if p == nil || p.Rate <= 0 {
		return 0
	}
	return Elapsed(int64(p.Frames()), p.Rate)
}

// Ticks is the number of whole periods of a rate-per-second clock in d.
// Splitting off whole seconds keeps d*rate from overflowing for long d.
func Ticks(d time.Duration, rate int) int64 {
	r := int64(rate)
	return int64(d/time.Second)*r + int64(d%time.Second)*r/int64(time.Second)
}

// Elapsed is the time taken by n ticks of a rate-per-second clock.
func Elapsed(n int64, rate int) time.Duration {
	r := int64(rate)
	return time.Duration(n/r)*time.Second + time.Duration(n%r*int64(time.Second)/r)
}
