package audio

// VADConfig holds configuration for Voice Activity Detection
type VADConfig struct {
	EnergyThreshold float64 // RMS energy threshold for speech detection
	SilenceFrames   int     // Consecutive silent frames that end an utterance
	FrameSize       int     // Samples per frame
}

// DefaultVADConfig returns 20 ms frames at 16 kHz
func DefaultVADConfig() *VADConfig {
	return &VADConfig{
		EnergyThreshold: 500.0,
		SilenceFrames:   10,  // 200ms
		FrameSize:       320, // 16000 * 0.02
	}
}

// VADDetector performs energy-based Voice Activity Detection
type VADDetector struct {
	config         *VADConfig
	silenceCounter int
	isSpeaking     bool
	speechFrames   int
}

// NewVADDetector creates a new VAD detector
func NewVADDetector(config *VADConfig) *VADDetector {
	if config == nil {
		config = DefaultVADConfig()
	}
	return &VADDetector{config: config}
}

// ProcessFrame processes one frame.
// Returns: (isSpeaking, speechStarted, speechEnded)
func (v *VADDetector) ProcessFrame(samples []int16) (bool, bool, bool) {
	var speechStarted, speechEnded bool

	if CalculateRMS(samples) > v.config.EnergyThreshold {
		v.silenceCounter = 0
		v.speechFrames++
		if !v.isSpeaking {
			speechStarted = true
			v.isSpeaking = true
		}
		return v.isSpeaking, speechStarted, speechEnded
	}

	v.silenceCounter++
	if v.isSpeaking && v.silenceCounter >= v.config.SilenceFrames {
		speechEnded = true
		v.isSpeaking = false
		v.silenceCounter = 0
	}
	return v.isSpeaking, speechStarted, speechEnded
}

// Process splits samples into frames and feeds each one.
// A trailing partial frame is evaluated as well.
func (v *VADDetector) Process(samples []int16) {
	size := v.config.FrameSize
	if size <= 0 {
		size = len(samples)
	}
	for start := 0; start < len(samples); start += size {
		end := start + size
		if end > len(samples) {
			end = len(samples)
		}
		v.ProcessFrame(samples[start:end])
	}
}

// HeardSpeech reports whether any processed frame contained speech since the last Reset
func (v *VADDetector) HeardSpeech() bool {
	return v.speechFrames > 0
}

// Reset resets the VAD detector state
func (v *VADDetector) Reset() {
	v.silenceCounter = 0
	v.isSpeaking = false
	v.speechFrames = 0
}

// IsSpeaking returns whether speech is currently detected
func (v *VADDetector) IsSpeaking() bool {
	return v.isSpeaking
}

// ContainsSpeech reports whether any frame of samples crosses the threshold
func ContainsSpeech(samples []int16, config *VADConfig) bool {
	v := NewVADDetector(config)
	v.Process(samples)
	return v.HeardSpeech()
}
