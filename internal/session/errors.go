package session

import "fmt"

// Stage names one step of the pipeline in logs, metrics and errors
type Stage string

const (
	StageRecord     Stage = "record"
	StageTranscribe Stage = "transcribe"
	StageConverse   Stage = "converse"
	StageSynthesize Stage = "synthesize"
	StagePlayback   Stage = "playback"
	StageUnknown    Stage = "unknown"
)

// StageError wraps the failure of one pipeline stage
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
