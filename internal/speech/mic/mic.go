// Package mic recognises speech from the default microphone. Audio is gated
// on loudness, checked for voice with the Silero VAD model and sent to a
// cloud recogniser as FLAC.
package mic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/bz888/cognix/internal/logger"
	"github.com/bz888/cognix/internal/speech/convert"
	"github.com/bz888/cognix/internal/speech/sound"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gordonklaus/portaudio"
	"github.com/orcaman/writerseeker"
	silero "github.com/streamer45/silero-vad-go/speech"
)

const (
	// Silero and the recogniser both take 16kHz mono audio.
	sampleRate = 16000

	framesPerBuffer = 512 * 9

	defaultMinVolume   = 450
	sendToVADDelay     = time.Second
	maxSegmentDuration = 25 * time.Second
)

var ErrNoInputDevice = errors.New("no microphone available")

// Transcriber turns FLAC audio into text.
type Transcriber interface {
	Recognize(ctx context.Context, audio []byte, sampleRate int) (string, float64, error)
}

// VoiceDetector reports whether 16kHz audio contains speech.
type VoiceDetector interface {
	DetectVoice(pcm []int16) (bool, error)
	Close() error
}

type Config struct {
	SileroModelPath string
	// MinVolume is the RMS level above which a frame counts as loud.
	MinVolume float64
	// DeviceIndex selects an input device from portaudio.Devices. A negative
	// value uses the default input device.
	DeviceIndex int
}

type Recognizer struct {
	cfg         Config
	transcriber Transcriber
	vad         VoiceDetector
	log         *logger.Logger
}

// New probes for a working microphone and loads the VAD model. It fails when
// either is missing or transcriber is nil, which leaves capture unsupported.
func New(cfg Config, transcriber Transcriber) (*Recognizer, error) {
	if transcriber == nil {
		return nil, errors.New("no speech recogniser configured")
	}
	if cfg.MinVolume <= 0 {
		cfg.MinVolume = defaultMinVolume
	}
	if _, err := os.Stat(cfg.SileroModelPath); err != nil {
		return nil, fmt.Errorf("silero model: %w", err)
	}

	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialise audio: %w", err)
	}
	_, err := inputDevice(cfg.DeviceIndex)
	_ = portaudio.Terminate()
	if err != nil {
		return nil, err
	}

	vad, err := NewSileroDetector(cfg.SileroModelPath)
	if err != nil {
		return nil, err
	}
	return &Recognizer{cfg: cfg, transcriber: transcriber, vad: vad, log: logger.NewLogger("mic")}, nil
}

func (r *Recognizer) Close() error {
	return r.vad.Close()
}

// Listen records until one voiced segment has been recognised.
func (r *Recognizer) Listen(ctx context.Context) (string, error) {
	if err := portaudio.Initialize(); err != nil {
		return "", fmt.Errorf("initialise audio: %w", err)
	}
	defer portaudio.Terminate()

	device, err := inputDevice(r.cfg.DeviceIndex)
	if err != nil {
		return "", err
	}

	in := make([]int16, framesPerBuffer)
	params := portaudio.HighLatencyParameters(device, nil)
	params.Input.Channels = 1
	params.FramesPerBuffer = len(in)
	stream, err := portaudio.OpenStream(params, &in)
	if err != nil {
		return "", fmt.Errorf("opening stream: %w", err)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return "", fmt.Errorf("starting stream: %w", err)
	}
	defer stream.Stop()

	deviceRate := int(params.SampleRate)
	seg := &segmenter{
		minVolume:  r.cfg.MinVolume,
		hangover:   sendToVADDelay,
		maxSamples: int(maxSegmentDuration.Seconds()) * deviceRate,
	}
	r.log.Debug("listening on ", device.Name, " at ", deviceRate, "Hz")

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := stream.Read(); err != nil {
			r.log.Warn("reading from stream: ", err)
			continue
		}

		segment, ready := seg.push(in, sound.RMS(in), time.Now())
		if !ready {
			continue
		}

		text, err := r.transcribe(ctx, sound.ResampleInt16(segment, deviceRate, sampleRate))
		if errors.Is(err, errNoVoice) {
			continue
		}
		return text, err
	}
}

var errNoVoice = errors.New("segment has no voice")

// transcribe checks a 16kHz segment for voice and sends it for recognition.
func (r *Recognizer) transcribe(ctx context.Context, pcm []int16) (string, error) {
	start := time.Now()
	detected, err := r.vad.DetectVoice(pcm)
	if err != nil {
		return "", fmt.Errorf("detect voice: %w", err)
	}
	r.log.Debug("voice detecting result ", detected, " in ", time.Since(start).Round(time.Millisecond))
	if !detected {
		return "", errNoVoice
	}

	flacData, err := encode(ctx, pcm)
	if err != nil {
		return "", err
	}

	start = time.Now()
	text, confidence, err := r.transcriber.Recognize(ctx, flacData, sampleRate)
	if err != nil {
		return "", fmt.Errorf("recognise: %w", err)
	}
	r.log.Debug("recognised in ", time.Since(start).Round(time.Millisecond), " with confidence ", confidence)
	return text, nil
}

// encode produces FLAC with the native encoder, falling back to the flac
// executable fed with a WAV file.
func encode(ctx context.Context, pcm []int16) ([]byte, error) {
	flacData, err := convert.EncodeFLAC(pcm, sampleRate)
	if err == nil {
		return flacData, nil
	}

	wavData, werr := encodeWAV(pcm)
	if werr != nil {
		return nil, errors.Join(err, werr)
	}
	flacData, ferr := convert.EncodeFLACExecutable(ctx, wavData)
	if ferr != nil {
		return nil, fmt.Errorf("FLAC encoding error: %w", errors.Join(err, ferr))
	}
	return flacData, nil
}

// encodeWAV writes a 16kHz mono WAV file in memory.
func encodeWAV(pcm []int16) ([]byte, error) {
	file := &writerseeker.WriterSeeker{}
	encoder := wav.NewEncoder(file, sampleRate, 16, 1, 1)

	buf := &audio.IntBuffer{
		Format:         &audio.Format{SampleRate: sampleRate, NumChannels: 1},
		Data:           sound.ConvertInt16ToInt(pcm),
		SourceBitDepth: 16,
	}
	if err := encoder.Write(buf); err != nil {
		return nil, fmt.Errorf("encoder write buffer: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("encoder close: %w", err)
	}

	wavData, err := io.ReadAll(file.Reader())
	if err != nil {
		return nil, fmt.Errorf("reading WAV file into memory: %w", err)
	}
	if len(wavData) == 0 {
		return nil, errors.New("WAV data is empty")
	}
	return wavData, nil
}

func inputDevice(index int) (*portaudio.DeviceInfo, error) {
	if index < 0 {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoInputDevice, err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	if index >= len(devices) || devices[index].MaxInputChannels < 1 {
		return nil, fmt.Errorf("%w: device %d is not an input", ErrNoInputDevice, index)
	}
	return devices[index], nil
}

// Device is an audio input as listed by InputDevices.
type Device struct {
	Index      int
	Name       string
	Channels   int
	SampleRate float64
	Default    bool
}

// InputDevices lists the devices that can record.
func InputDevices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialise audio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	def, _ := portaudio.DefaultInputDevice()

	var out []Device
	for i, d := range devices {
		if d.MaxInputChannels < 1 {
			continue
		}
		out = append(out, Device{
			Index:      i,
			Name:       d.Name,
			Channels:   d.MaxInputChannels,
			SampleRate: d.DefaultSampleRate,
			Default:    def != nil && def.Name == d.Name,
		})
	}
	return out, nil
}

// SileroDetector runs the Silero VAD model.
type SileroDetector struct {
	detector *silero.Detector
}

func NewSileroDetector(modelPath string) (*SileroDetector, error) {
	d, err := silero.NewDetector(silero.DetectorConfig{
		ModelPath:            modelPath,
		SampleRate:           sampleRate,
		WindowSize:           1536,
		Threshold:            0.5,
		MinSilenceDurationMs: 0,
		SpeechPadMs:          0,
	})
	if err != nil {
		return nil, fmt.Errorf("creating silero detector: %w", err)
	}
	return &SileroDetector{detector: d}, nil
}

func (s *SileroDetector) DetectVoice(pcm []int16) (bool, error) {
	segments, err := s.detector.Detect(sound.ConvertInt16ToFloat32(pcm))
	if err != nil {
		return false, err
	}
	return len(segments) > 0, nil
}

func (s *SileroDetector) Close() error {
	return s.detector.Destroy()
}
