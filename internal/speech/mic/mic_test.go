package mic

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bz888/cognix/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTranscriber struct {
	mock.Mock
}

func (m *MockTranscriber) Recognize(ctx context.Context, audio []byte, rate int) (string, float64, error) {
	args := m.Called(ctx, audio, rate)
	return args.String(0), args.Get(1).(float64), args.Error(2)
}

type fakeVAD struct {
	voiced bool
	err    error
	seen   [][]int16
}

func (f *fakeVAD) DetectVoice(pcm []int16) (bool, error) {
	f.seen = append(f.seen, pcm)
	return f.voiced, f.err
}

func (f *fakeVAD) Close() error { return nil }

func frame(v int16, n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestSegmenterReleasesAfterSilence(t *testing.T) {
	s := &segmenter{minVolume: 450, hangover: time.Second}
	now := time.Unix(0, 0)

	_, ready := s.push(frame(0, 4), 10, now)
	assert.False(t, ready, "quiet frames before speech are ignored")

	_, ready = s.push(frame(1, 4), 900, now.Add(100*time.Millisecond))
	assert.False(t, ready)
	_, ready = s.push(frame(2, 4), 100, now.Add(600*time.Millisecond))
	assert.False(t, ready, "quiet frames inside the hangover are kept")

	segment, ready := s.push(frame(3, 4), 100, now.Add(1200*time.Millisecond))
	require.True(t, ready)
	assert.Equal(t, append(frame(1, 4), frame(2, 4)...), segment)

	_, ready = s.push(frame(4, 4), 100, now.Add(1300*time.Millisecond))
	assert.False(t, ready)
}

func TestSegmenterCapsLength(t *testing.T) {
	s := &segmenter{minVolume: 450, hangover: time.Second, maxSamples: 8}
	now := time.Unix(0, 0)

	_, ready := s.push(frame(1, 4), 900, now)
	assert.False(t, ready)
	segment, ready := s.push(frame(2, 4), 900, now.Add(10*time.Millisecond))
	require.True(t, ready)
	assert.Len(t, segment, 8)

	_, ready = s.push(frame(3, 4), 900, now.Add(20*time.Millisecond))
	assert.False(t, ready, "speech continues into a fresh segment")
}

func newTestRecognizer(vad VoiceDetector, tr Transcriber) *Recognizer {
	return &Recognizer{cfg: Config{MinVolume: defaultMinVolume}, transcriber: tr, vad: vad, log: logger.NewLogger("mic")}
}

func TestTranscribeVoicedSegment(t *testing.T) {
	tr := new(MockTranscriber)
	tr.On("Recognize", mock.Anything, mock.MatchedBy(func(audio []byte) bool {
		return bytes.HasPrefix(audio, []byte("fLaC"))
	}), sampleRate).Return("turn on the lights", 0.9, nil).Once()

	r := newTestRecognizer(&fakeVAD{voiced: true}, tr)
	text, err := r.transcribe(context.Background(), frame(1200, 16000))
	require.NoError(t, err)
	assert.Equal(t, "turn on the lights", text)
	tr.AssertExpectations(t)
}

func TestTranscribeSkipsSilence(t *testing.T) {
	tr := new(MockTranscriber)
	r := newTestRecognizer(&fakeVAD{voiced: false}, tr)

	_, err := r.transcribe(context.Background(), frame(0, 16000))
	assert.ErrorIs(t, err, errNoVoice)
	tr.AssertNotCalled(t, "Recognize", mock.Anything, mock.Anything, mock.Anything)
}

func TestTranscribeErrors(t *testing.T) {
	r := newTestRecognizer(&fakeVAD{err: errors.New("onnx failure")}, new(MockTranscriber))
	_, err := r.transcribe(context.Background(), frame(1, 100))
	assert.ErrorContains(t, err, "onnx failure")

	tr := new(MockTranscriber)
	tr.On("Recognize", mock.Anything, mock.Anything, sampleRate).Return("", 0.0, errors.New("quota"))
	r = newTestRecognizer(&fakeVAD{voiced: true}, tr)
	_, err = r.transcribe(context.Background(), frame(1, 100))
	assert.ErrorContains(t, err, "quota")
}

func TestEncodeWAV(t *testing.T) {
	data, err := encodeWAV(frame(7, 1600))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("RIFF")))
	assert.Equal(t, []byte("WAVE"), data[8:12])
	assert.Greater(t, len(data), 3200)
}

func TestNewRequiresTranscriber(t *testing.T) {
	_, err := New(Config{SileroModelPath: "missing.onnx"}, nil)
	assert.Error(t, err)

	_, err = New(Config{SileroModelPath: "missing.onnx"}, new(MockTranscriber))
	assert.ErrorContains(t, err, "silero model")
}
