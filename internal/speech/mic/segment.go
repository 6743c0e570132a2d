package mic

import "time"

// segmenter gates microphone frames on loudness. Frames are collected while
// the speaker was loud within the last hangover period; a segment is
// released once they fall silent or it reaches maxSamples.
type segmenter struct {
	minVolume  float64
	hangover   time.Duration
	maxSamples int

	lastVoice time.Time
	buf       []int16
}

func (s *segmenter) push(frame []int16, volume float64, now time.Time) ([]int16, bool) {
	if volume > s.minVolume {
		s.lastVoice = now
	}

	if !s.lastVoice.IsZero() && now.Sub(s.lastVoice) < s.hangover {
		s.buf = append(s.buf, frame...)
		if s.maxSamples > 0 && len(s.buf) >= s.maxSamples {
			return s.flush(), true
		}
		return nil, false
	}

	if len(s.buf) > 0 {
		return s.flush(), true
	}
	return nil, false
}

func (s *segmenter) flush() []int16 {
	out := make([]int16, len(s.buf))
	copy(out, s.buf)
	s.buf = s.buf[:0]
	return out
}
