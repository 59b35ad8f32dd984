// Package session runs one assistant session: it owns the record, transcribe,
// converse, speak pipeline and publishes the session state to a presenter.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-assistant/internal/audio"
	"github.com/lexiqai/voice-assistant/internal/chat"
	"github.com/lexiqai/voice-assistant/internal/observability"
	"github.com/lexiqai/voice-assistant/internal/persona"
	"github.com/lexiqai/voice-assistant/internal/stt"
	"github.com/lexiqai/voice-assistant/internal/tts"
	"github.com/lexiqai/voice-assistant/internal/visual"
)

var (
	// ErrBusy is returned when the record control is used outside Idle or Recording
	ErrBusy = errors.New("session: busy")
	// ErrClosed is returned after Close
	ErrClosed = errors.New("session: closed")
)

const (
	defaultStageTimeout = 30 * time.Second
	stopTimeout         = 5 * time.Second
)

// Recorder captures one utterance per Start/Stop pair and hands it to deliver exactly once
type Recorder interface {
	Start(ctx context.Context, deliver func(audio.Blob)) error
	Stop(ctx context.Context) error
}

// Player starts playback and returns; the end of playback is reported through
// Controller.PlaybackEnded. ctx bounds starting playback, not the playback itself.
type Player interface {
	Play(ctx context.Context, speech *tts.Speech) error
}

// Presenter shows session state to the user
type Presenter interface {
	Render(snapshot Snapshot)
	RenderLevel(level Level)
}

// Snapshot is the published session state
type Snapshot struct {
	State             State   `json:"state"`
	Recording         bool    `json:"recording"`
	Speaking          bool    `json:"speaking"`
	Loading           bool    `json:"loading"`
	Error             string  `json:"error,omitempty"`
	VisualizerGain    float64 `json:"visualizer_gain"`
	Quote             string  `json:"quote,omitempty"`
	ShowRecordControl bool    `json:"show_record_control"`
}

// Level is one visualizer update while speaking
type Level struct {
	audio.Frame
	Gain float64 `json:"gain"`
}

// Options wires a controller to its collaborators
type Options struct {
	SessionID   string
	Recorder    Recorder
	Transcriber stt.Transcriber
	Agent       chat.Responder
	Synthesizer tts.Synthesizer
	Player      Player
	Presenter   Presenter
	Persona     *persona.Persona

	StageTimeout      time.Duration // per external call
	SplashDuration    time.Duration // loading state after Open
	VisualizerFPS     int
	VisualizerMaxGain float64
}

// Controller is the session state machine plus the pipeline that drives it
type Controller struct {
	id          string
	recorder    Recorder
	transcriber stt.Transcriber
	agent       chat.Responder
	synthesizer tts.Synthesizer
	player      Player
	presenter   Presenter
	persona     *persona.Persona

	stageTimeout time.Duration
	splash       time.Duration
	maxGain      float64

	machine *Machine
	feeder  *visual.Feeder
	logger  zerolog.Logger
	metrics *observability.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	renderMu sync.Mutex

	mu              sync.Mutex
	closed          bool
	loading         bool
	quote           string
	errText         string
	lastErr         error
	gain            float64
	generation      uint64
	delivered       bool
	playbackStarted bool
}

// NewController creates a session bound to ctx. Cancelling ctx has the same effect as Close
// on outstanding work, but Close must still be called to release the session.
func NewController(ctx context.Context, opts Options) *Controller {
	if opts.SessionID == "" {
		opts.SessionID = observability.NewCorrelationID()
	}
	if opts.Persona == nil {
		opts.Persona = persona.Default()
	}
	if opts.StageTimeout <= 0 {
		opts.StageTimeout = defaultStageTimeout
	}
	if opts.VisualizerMaxGain < 1 {
		opts.VisualizerMaxGain = 1
	}

	c := &Controller{
		id:           opts.SessionID,
		recorder:     opts.Recorder,
		transcriber:  opts.Transcriber,
		agent:        opts.Agent,
		synthesizer:  opts.Synthesizer,
		player:       opts.Player,
		presenter:    opts.Presenter,
		persona:      opts.Persona,
		stageTimeout: opts.StageTimeout,
		splash:       opts.SplashDuration,
		maxGain:      opts.VisualizerMaxGain,
		feeder:       visual.NewFeeder(opts.VisualizerFPS),
		logger:       observability.WithCorrelationID(opts.SessionID).With().Str("component", "session").Logger(),
		metrics:      observability.NewSessionMetrics(opts.SessionID),
		gain:         1,
	}
	c.ctx, c.cancel = context.WithCancel(ctx)
	c.machine = NewMachine(c.onTransition)
	c.metrics.RecordSessionStart()

	return c
}

// ID returns the session id used as correlation id in logs
func (c *Controller) ID() string {
	return c.id
}

// Open publishes the initial state with a loading quote, then clears loading after the splash
func (c *Controller) Open() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.quote = c.persona.RandomQuote()
	c.loading = c.splash > 0
	if c.loading {
		c.wg.Add(1)
	}
	c.mu.Unlock()

	c.logger.Info().Dur("splash", c.splash).Msg("Session opened")
	c.publish()

	if c.splash <= 0 {
		return
	}

	go func() {
		defer c.wg.Done()

		timer := time.NewTimer(c.splash)
		defer timer.Stop()

		select {
		case <-c.ctx.Done():
			return
		case <-timer.C:
		}

		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
		c.publish()
	}()
}

// ToggleRecording starts a recording in Idle and stops it in Recording.
// Anything else returns ErrBusy without changing state.
func (c *Controller) ToggleRecording() error {
	c.mu.Lock()
	closed, loading := c.closed, c.loading
	c.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if loading {
		return ErrBusy
	}

	switch c.machine.State() {
	case StateIdle:
		return c.startRecording()
	case StateRecording:
		return c.stopRecording()
	default:
		return ErrBusy
	}
}

func (c *Controller) startRecording() error {
	if _, err := c.machine.Fire(EventStartRecording); err != nil {
		return ErrBusy
	}

	c.mu.Lock()
	c.errText = ""
	c.generation++
	gen := c.generation
	c.delivered = false
	c.mu.Unlock()

	c.publish()

	deliver := func(blob audio.Blob) {
		c.onRecordingStopped(gen, blob)
	}
	if err := c.recorder.Start(c.ctx, deliver); err != nil {
		c.fail(&StageError{Stage: StageRecord, Err: err})
	}
	return nil
}

func (c *Controller) stopRecording() error {
	if _, err := c.machine.Fire(EventStopRecording); err != nil {
		return ErrBusy
	}
	c.publish()

	ctx, cancel := context.WithTimeout(c.ctx, stopTimeout)
	defer cancel()
	if err := c.recorder.Stop(ctx); err != nil {
		c.fail(&StageError{Stage: StageRecord, Err: err})
	}
	return nil
}

// onRecordingStopped receives the recorder's blob and starts the pipeline
func (c *Controller) onRecordingStopped(gen uint64, blob audio.Blob) {
	c.mu.Lock()
	if c.closed || gen != c.generation || c.delivered {
		c.mu.Unlock()
		c.logger.Warn().Uint64("recording", gen).Msg("Dropping stale recording")
		return
	}
	c.delivered = true
	c.mu.Unlock()

	switch c.machine.State() {
	case StateRecording:
		// Recorder finished on its own
		if _, err := c.machine.Fire(EventStopRecording); err != nil {
			return
		}
		c.publish()
	case StateProcessing:
	default:
		c.logger.Warn().Str("state", c.machine.State().String()).Msg("Recording delivered outside processing")
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()

	go c.runPipeline(blob)
}

func (c *Controller) runPipeline(blob audio.Blob) {
	defer c.wg.Done()

	c.metrics.RecordAudioBytes("in", int64(len(blob.Data)))
	if blob.Empty() {
		c.noSpeech("empty recording")
		return
	}

	var question string
	err := c.stage(StageTranscribe, func(ctx context.Context) error {
		var err error
		question, err = c.transcriber.Transcribe(ctx, blob)
		return err
	})
	if err != nil {
		c.fail(err)
		return
	}
	question = strings.TrimSpace(question)
	if question == "" {
		c.noSpeech("empty transcript")
		return
	}
	c.logger.Info().Str("question", question).Msg("Heard")

	var answer string
	err = c.stage(StageConverse, func(ctx context.Context) error {
		var err error
		answer, err = c.agent.Reply(ctx, question)
		return err
	})
	if err != nil {
		c.fail(err)
		return
	}
	c.logger.Info().Str("answer", answer).Msg("Replying")

	if _, err := c.machine.Fire(EventBeginSpeaking); err != nil {
		c.logger.Warn().Err(err).Msg("Could not enter speaking")
		return
	}
	c.publish()

	var speech *tts.Speech
	err = c.stage(StageSynthesize, func(ctx context.Context) error {
		var err error
		speech, err = c.synthesizer.Synthesize(ctx, answer)
		return err
	})
	if err != nil {
		c.fail(err)
		return
	}
	c.metrics.RecordAudioBytes("out", int64(len(speech.Samples)*2))

	if speech.Analyser != nil {
		c.feeder.Start(c.ctx, speech.Analyser, c.onFrame)
	}
	c.mu.Lock()
	c.playbackStarted = true
	c.mu.Unlock()

	err = c.stage(StagePlayback, func(ctx context.Context) error {
		return c.player.Play(ctx, speech)
	})
	if err != nil {
		c.fail(err)
	}
}

// stage runs one external call under the stage timeout with metrics and logging
func (c *Controller) stage(stage Stage, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(c.ctx, c.stageTimeout)
	defer cancel()

	c.metrics.RecordStageStart(string(stage))
	start := time.Now()
	err := fn(ctx)
	c.metrics.RecordStageEnd(string(stage), err == nil)

	c.logger.Debug().
		Str("stage", string(stage)).
		Dur("latency", time.Since(start)).
		Bool("success", err == nil).
		Msg("Stage finished")

	if err != nil {
		return &StageError{Stage: stage, Err: err}
	}
	return nil
}

// PlaybackEnded is the end-of-playback notification. Ignored unless speaking audio has started.
func (c *Controller) PlaybackEnded() {
	c.mu.Lock()
	started := c.playbackStarted
	c.mu.Unlock()
	if !started {
		return
	}

	if _, err := c.machine.Fire(EventPlaybackEnded); err != nil {
		return
	}
	c.feeder.Stop()

	c.mu.Lock()
	c.playbackStarted = false
	c.gain = 1
	c.mu.Unlock()

	c.metrics.RecordPipelineOutcome("spoken")
	c.publish()
}

func (c *Controller) noSpeech(reason string) {
	if _, err := c.machine.Fire(EventNoSpeech); err != nil {
		return
	}
	c.logger.Info().Str("reason", reason).Msg("No speech in recording")
	c.metrics.RecordPipelineOutcome("no_speech")
	c.publish()
}

// fail publishes the generic error and returns the session to Idle.
// Failures caused by Close are dropped.
func (c *Controller) fail(err error) {
	if c.ctx.Err() != nil {
		c.metrics.RecordPipelineOutcome("canceled")
		return
	}

	stage := StageUnknown
	var serr *StageError
	if errors.As(err, &serr) {
		stage = serr.Stage
	}

	c.logger.Error().Err(err).Str("stage", string(stage)).Msg("Pipeline stage failed")
	c.metrics.RecordError("stage_failed", string(stage))
	c.metrics.RecordPipelineOutcome("failed")

	c.feeder.Stop()

	c.mu.Lock()
	c.errText = c.persona.FailureText()
	c.lastErr = err
	c.gain = 1
	c.playbackStarted = false
	// A late delivery from the failed recording must not start a pipeline
	c.generation++
	c.mu.Unlock()

	if _, ferr := c.machine.Fire(EventFail); ferr != nil {
		c.logger.Warn().Err(ferr).Msg("Failure outside an active stage")
		c.publish()
		return
	}
	c.publish()

	if _, rerr := c.machine.Fire(EventReset); rerr == nil {
		c.publish()
	}
}

func (c *Controller) onFrame(frame audio.Frame) {
	c.mu.Lock()
	if c.machine.State() != StateSpeaking || !c.playbackStarted {
		c.mu.Unlock()
		return
	}
	c.gain = 1 + frame.Level*(c.maxGain-1)
	level := Level{Frame: frame, Gain: c.gain}
	c.mu.Unlock()

	if c.presenter != nil {
		c.presenter.RenderLevel(level)
	}
}

func (c *Controller) onTransition(from, to State, event Event) {
	c.metrics.RecordTransition(from.String(), to.String())
	c.logger.Debug().
		Str("from", from.String()).
		Str("to", to.String()).
		Str("event", event.String()).
		Msg("State transition")
}

// Snapshot returns the current session state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := c.machine.State()
	speaking := state == StateSpeaking
	return Snapshot{
		State:             state,
		Recording:         state == StateRecording,
		Speaking:          speaking,
		Loading:           c.loading,
		Error:             c.errText,
		VisualizerGain:    c.gain,
		Quote:             c.quote,
		ShowRecordControl: !speaking,
	}
}

// LastError returns the most recent pipeline failure, for diagnostics
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) publish() {
	if c.presenter == nil {
		return
	}
	c.renderMu.Lock()
	defer c.renderMu.Unlock()
	c.presenter.Render(c.Snapshot())
}

// Close cancels outstanding work, stops an active recording and waits for goroutines.
// Safe to call more than once.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.generation++
	c.mu.Unlock()

	var stopErr error
	if c.machine.State() == StateRecording {
		ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		stopErr = c.recorder.Stop(ctx)
		cancel()
	}

	c.cancel()
	c.feeder.Stop()
	c.wg.Wait()

	c.metrics.RecordSessionEnd()
	c.logger.Info().Msg("Session closed")

	if stopErr != nil {
		return fmt.Errorf("stopping recorder: %w", stopErr)
	}
	return nil
}
