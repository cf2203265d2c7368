package transcribe

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"
)

// SherpaOptions configures the in-process sherpa-onnx backend.
type SherpaOptions struct {
	// ModelDir holds either a transducer (encoder, decoder, joiner) or a
	// Whisper (encoder, decoder) export plus tokens.txt.
	ModelDir string
	// VADModel is the path to silero_vad.onnx. Empty disables VAD and decodes
	// the file in fixed windows.
	VADModel   string
	Language   string
	NumThreads int
	SampleRate int
	FFmpeg     string
}

// Sherpa transcribes in-process with a sherpa-onnx offline recognizer.
type Sherpa struct {
	opts SherpaOptions
}

// NewSherpa returns a sherpa-onnx backend. Models are loaded per run.
func NewSherpa(opts SherpaOptions) *Sherpa {
	if opts.NumThreads <= 0 {
		opts.NumThreads = 2
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 16000
	}
	if opts.FFmpeg == "" {
		opts.FFmpeg = "ffmpeg"
	}
	return &Sherpa{opts: opts}
}

const (
	vadWindowSize   = 512
	plainWindowSecs = 30
)

// Transcribe implements Producer.
func (s *Sherpa) Transcribe(ctx context.Context, audioPath string) ([]Word, error) {
	recognizer, err := s.newRecognizer()
	if err != nil {
		return nil, failure(BackendSherpa, err)
	}
	defer sherpa.DeleteOfflineRecognizer(recognizer)

	slog.Info("transcribing", "backend", BackendSherpa, "model_dir", s.opts.ModelDir, "vad", s.opts.VADModel != "")

	if s.opts.VADModel != "" {
		if _, err := os.Stat(s.opts.VADModel); err != nil {
			return nil, failure(BackendSherpa, fmt.Errorf("VAD model: %w", err))
		}
	}

	// Cancelling pctx kills ffmpeg if decoding stops before EOF.
	pctx, cancel := context.WithCancel(ctx)
	defer cancel()
	pcm, wait, err := s.openPCM(pctx, audioPath)
	if err != nil {
		return nil, failure(BackendSherpa, err)
	}

	var words []Word
	if s.opts.VADModel != "" {
		words, err = s.decodeWithVAD(ctx, recognizer, pcm)
	} else {
		words, err = s.decodeWindows(ctx, recognizer, pcm)
	}
	if err != nil {
		cancel()
		_ = wait()
		return nil, failure(BackendSherpa, err)
	}
	if err := wait(); err != nil {
		return nil, failure(BackendSherpa, err)
	}
	return cleanWords(words), nil
}

func (s *Sherpa) newRecognizer() (*sherpa.OfflineRecognizer, error) {
	dir := s.opts.ModelDir
	if dir == "" {
		return nil, errors.New("model_dir is required")
	}
	tokens := findModelFile(dir, []string{"tokens.txt", "large-v3-tokens.txt", "tiny-tokens.txt", "base-tokens.txt"})
	if tokens == "" {
		return nil, fmt.Errorf("tokens file not found in %s", dir)
	}
	encoder := findModelFile(dir, []string{"encoder.int8.onnx", "encoder.onnx", "encoder-epoch-99-avg-1.int8.onnx", "encoder-epoch-99-avg-1.onnx", "tiny-encoder.int8.onnx", "base-encoder.int8.onnx", "large-v3-encoder.int8.onnx"})
	decoder := findModelFile(dir, []string{"decoder.int8.onnx", "decoder.onnx", "decoder-epoch-99-avg-1.onnx", "tiny-decoder.int8.onnx", "base-decoder.int8.onnx", "large-v3-decoder.int8.onnx"})
	joiner := findModelFile(dir, []string{"joiner.int8.onnx", "joiner.onnx", "joiner-epoch-99-avg-1.int8.onnx", "joiner-epoch-99-avg-1.onnx"})
	if encoder == "" || decoder == "" {
		return nil, fmt.Errorf("encoder/decoder model not found in %s", dir)
	}

	cfg := sherpa.OfflineRecognizerConfig{
		FeatConfig: sherpa.FeatureConfig{
			SampleRate: s.opts.SampleRate,
			FeatureDim: 80,
		},
		ModelConfig: sherpa.OfflineModelConfig{
			Tokens:     tokens,
			NumThreads: s.opts.NumThreads,
			Debug:      0,
		},
		DecodingMethod: "greedy_search",
	}
	if joiner != "" {
		cfg.ModelConfig.Transducer = sherpa.OfflineTransducerModelConfig{
			Encoder: encoder,
			Decoder: decoder,
			Joiner:  joiner,
		}
	} else {
		cfg.ModelConfig.Whisper = sherpa.OfflineWhisperModelConfig{
			Encoder:  encoder,
			Decoder:  decoder,
			Language: s.opts.Language,
			Task:     "transcribe",
		}
	}

	recognizer := sherpa.NewOfflineRecognizer(&cfg)
	if recognizer == nil {
		return nil, errors.New("failed to create offline recognizer")
	}
	return recognizer, nil
}

// openPCM starts ffmpeg decoding audioPath to mono s16le at the configured
// rate. wait reaps the process.
func (s *Sherpa) openPCM(ctx context.Context, audioPath string) (io.Reader, func() error, error) {
	var stderr strings.Builder
	cmd := exec.CommandContext(ctx, s.opts.FFmpeg, //nolint:gosec
		"-i", audioPath,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(s.opts.SampleRate),
		"-ac", "1",
		"-loglevel", "error",
		"pipe:1",
	)
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	wait := func() error {
		if err := cmd.Wait(); err != nil {
			return fmt.Errorf("ffmpeg: %w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil
	}
	return bufio.NewReader(stdout), wait, nil
}

func (s *Sherpa) decodeWithVAD(ctx context.Context, recognizer *sherpa.OfflineRecognizer, pcm io.Reader) ([]Word, error) {
	vadCfg := sherpa.VadModelConfig{
		SileroVad: sherpa.SileroVadModelConfig{
			Model:              s.opts.VADModel,
			Threshold:          0.5,
			MinSilenceDuration: 0.5,
			MinSpeechDuration:  0.25,
			WindowSize:         vadWindowSize,
		},
		SampleRate: s.opts.SampleRate,
		NumThreads: 1,
		Debug:      0,
	}
	vad := sherpa.NewVoiceActivityDetector(&vadCfg, 30)
	if vad == nil {
		return nil, errors.New("failed to create VAD")
	}
	defer sherpa.DeleteVoiceActivityDetector(vad)

	var words []Word
	drain := func() {
		for !vad.IsEmpty() {
			seg := vad.Front()
			vad.Pop()
			start := float64(seg.Start) / float64(s.opts.SampleRate)
			end := start + float64(len(seg.Samples))/float64(s.opts.SampleRate)
			words = append(words, s.decode(recognizer, seg.Samples, start, end)...)
		}
	}

	buf := make([]byte, vadWindowSize*2)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := io.ReadFull(pcm, buf)
		if n > 0 {
			vad.AcceptWaveform(pcmToFloat32(buf[:n]))
			drain()
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read pcm: %w", err)
		}
	}
	vad.Flush()
	drain()
	return words, nil
}

func (s *Sherpa) decodeWindows(ctx context.Context, recognizer *sherpa.OfflineRecognizer, pcm io.Reader) ([]Word, error) {
	var words []Word
	buf := make([]byte, s.opts.SampleRate*plainWindowSecs*2)
	offset := 0.0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := io.ReadFull(pcm, buf)
		if n > 0 {
			samples := pcmToFloat32(buf[:n])
			end := offset + float64(len(samples))/float64(s.opts.SampleRate)
			words = append(words, s.decode(recognizer, samples, offset, end)...)
			offset = end
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read pcm: %w", err)
		}
	}
	return words, nil
}

// decode runs one speech segment spanning [start, end) seconds.
func (s *Sherpa) decode(recognizer *sherpa.OfflineRecognizer, samples []float32, start, end float64) []Word {
	stream := sherpa.NewOfflineStream(recognizer)
	defer sherpa.DeleteOfflineStream(stream)

	stream.AcceptWaveform(s.opts.SampleRate, samples)
	recognizer.Decode(stream)

	result := stream.GetResult()
	if result == nil || strings.TrimSpace(result.Text) == "" {
		return nil
	}
	return joinTokens(result.Tokens, result.Timestamps, start, end)
}

// pcmToFloat32 converts 16-bit little-endian PCM to float32 samples.
func pcmToFloat32(data []byte) []float32 {
	samples := make([]float32, len(data)/2)
	for i := range samples {
		sample := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}

func findModelFile(dir string, candidates []string) string {
	for _, candidate := range candidates {
		path := filepath.Join(dir, candidate)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
