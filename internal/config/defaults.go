package config

const (
	defaultSessionDB          = "~/.local/share/lyricsync/sessions.db"
	defaultBackend            = BackendFasterWhisper
	defaultModel              = "tiny"
	defaultDevice             = "cpu"
	defaultComputeType        = "float32"
	defaultBeamSize           = 5
	defaultPython             = "python3"
	defaultWhisperXCommand    = "uvx"
	defaultWhisperXModel      = "large-v3"
	defaultWhisperXVADMethod  = "silero"
	defaultScribeBaseURL      = "https://api.elevenlabs.io/v1/speech-to-text"
	defaultScribeModelID      = "scribe_v1"
	defaultScribeTimeout      = 1800
	defaultSherpaThreads      = 2
	defaultSampleRate         = 16000
	defaultBatchMaxConcurrent = 2
	defaultLogLevel           = "info"
)

// Backend names accepted by transcription.backend.
const (
	BackendFasterWhisper = "faster-whisper"
	BackendWhisperX      = "whisperx"
	BackendScribe        = "scribe"
	BackendSherpa        = "sherpa"
)

// Default returns a Config with the built-in defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			SessionDB: defaultSessionDB,
			FFmpeg:    "ffmpeg",
			FFprobe:   "ffprobe",
		},
		Transcription: Transcription{
			Backend:     defaultBackend,
			Model:       defaultModel,
			VADFilter:   true,
			Device:      defaultDevice,
			ComputeType: defaultComputeType,
			BeamSize:    defaultBeamSize,
			Python:      defaultPython,
		},
		WhisperX: WhisperX{
			Command:   defaultWhisperXCommand,
			Model:     defaultWhisperXModel,
			VADMethod: defaultWhisperXVADMethod,
		},
		Scribe: Scribe{
			BaseURL:        defaultScribeBaseURL,
			ModelID:        defaultScribeModelID,
			TimeoutSeconds: defaultScribeTimeout,
		},
		Sherpa: Sherpa{
			NumThreads: defaultSherpaThreads,
			SampleRate: defaultSampleRate,
		},
		Export: Export{
			Formats: []string{"lrc", "srt", "txt"},
		},
		Batch: Batch{
			MaxConcurrent: defaultBatchMaxConcurrent,
		},
		Logging: Logging{
			Level: defaultLogLevel,
		},
	}
}
