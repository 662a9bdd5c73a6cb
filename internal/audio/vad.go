package audio

// VADConfig holds configuration for Voice Activity Detection
type VADConfig struct {
	EnergyThreshold float64 // RMS energy threshold for speech detection
	SilenceFrames   int     // Number of consecutive silence frames to mark as end of speech
	FrameSize       int     // Number of samples per frame
}

// DefaultVADConfig returns 20 ms frames at 16 kHz
func DefaultVADConfig() *VADConfig {
	return &VADConfig{
		EnergyThreshold: 500.0,
		SilenceFrames:   10,  // 200ms of silence (10 frames * 20ms)
		FrameSize:       320, // 20ms at 16kHz
	}
}

// VADDetector performs Voice Activity Detection
type VADDetector struct {
	config         *VADConfig
	silenceCounter int
	isSpeaking     bool
}

// NewVADDetector creates a new VAD detector
func NewVADDetector(config *VADConfig) *VADDetector {
	if config == nil {
		config = DefaultVADConfig()
	}
	return &VADDetector{config: config}
}

// ProcessFrame processes an audio frame and returns whether speech is detected
// Returns: (isSpeaking, speechStarted, speechEnded)
func (v *VADDetector) ProcessFrame(samples []int16) (bool, bool, bool) {
	frameHasSpeech := CalculateRMS(samples) > v.config.EnergyThreshold

	var speechStarted, speechEnded bool

	if frameHasSpeech {
		v.silenceCounter = 0
		if !v.isSpeaking {
			speechStarted = true
			v.isSpeaking = true
		}
	} else {
		v.silenceCounter++
		if v.isSpeaking && v.silenceCounter >= v.config.SilenceFrames {
			speechEnded = true
			v.isSpeaking = false
			v.silenceCounter = 0
		}
	}

	return v.isSpeaking, speechStarted, speechEnded
}

// Reset resets the VAD detector state
func (v *VADDetector) Reset() {
	v.silenceCounter = 0
	v.isSpeaking = false
}

// IsSpeaking returns whether speech is currently detected
func (v *VADDetector) IsSpeaking() bool {
	return v.isSpeaking
}

// SpeechSummary describes the energy profile of a finished recording
type SpeechSummary struct {
	Frames       int
	SpeechFrames int
	Segments     int // Separate stretches of speech
	PeakRMS      float64
}

// HasSpeech reports whether any frame crossed the energy threshold
func (s SpeechSummary) HasSpeech() bool {
	return s.SpeechFrames > 0
}

// Summarize runs the detector over a whole recording.
// The summary is informational; it never decides whether audio is transcribed.
func Summarize(samples []int16, config *VADConfig) SpeechSummary {
	if config == nil {
		config = DefaultVADConfig()
	}
	frameSize := config.FrameSize
	if frameSize <= 0 {
		frameSize = DefaultVADConfig().FrameSize
	}

	v := NewVADDetector(config)
	var summary SpeechSummary
	for start := 0; start < len(samples); start += frameSize {
		end := start + frameSize
		if end > len(samples) {
			end = len(samples)
		}
		frame := samples[start:end]

		rms := CalculateRMS(frame)
		if rms > summary.PeakRMS {
			summary.PeakRMS = rms
		}
		if rms > config.EnergyThreshold {
			summary.SpeechFrames++
		}

		if _, started, _ := v.ProcessFrame(frame); started {
			summary.Segments++
		}
		summary.Frames++
	}
	return summary
}
