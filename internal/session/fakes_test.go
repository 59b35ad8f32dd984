package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/lexiqai/voice-assistant/internal/audio"
	"github.com/lexiqai/voice-assistant/internal/tts"
)

// fakeRecorder hands its blob over when stopped
type fakeRecorder struct {
	mu       sync.Mutex
	blob     audio.Blob
	startErr error
	stopErr  error
	deliver  func(audio.Blob)
	stranded func(audio.Blob) // deliver of a recording whose Stop failed
	starts   int
	stops    int
}

func (r *fakeRecorder) Start(ctx context.Context, deliver func(audio.Blob)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	if r.startErr != nil {
		return r.startErr
	}
	r.deliver = deliver
	return nil
}

func (r *fakeRecorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	r.stops++
	deliver, blob, err := r.deliver, r.blob, r.stopErr
	r.deliver = nil
	if err != nil {
		r.stranded = deliver
	}
	r.mu.Unlock()

	if err != nil {
		return err
	}
	if deliver != nil {
		deliver(blob)
	}
	return nil
}

type fakeTranscriber struct {
	mu    sync.Mutex
	text  string
	err   error
	block bool // wait for cancellation
	blobs []audio.Blob
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, blob audio.Blob) (string, error) {
	f.mu.Lock()
	f.blobs = append(f.blobs, blob)
	text, err, block := f.text, f.err, f.block
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return text, err
}

func (f *fakeTranscriber) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.blobs)
}

type fakeAgent struct {
	mu        sync.Mutex
	reply     string
	err       error
	questions []string
}

func (f *fakeAgent) Reply(ctx context.Context, question string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questions = append(f.questions, question)
	return f.reply, f.err
}

func (f *fakeAgent) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.questions)
}

type fakeSynthesizer struct {
	mu     sync.Mutex
	speech *tts.Speech
	err    error
	texts  []string
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text string) (*tts.Speech, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.speech, nil
}

type fakePlayer struct {
	err    error
	played chan *tts.Speech
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{played: make(chan *tts.Speech, 4)}
}

func (p *fakePlayer) Play(ctx context.Context, speech *tts.Speech) error {
	if p.err != nil {
		return p.err
	}
	p.played <- speech
	return nil
}

// recordingPresenter keeps every published snapshot and level
type recordingPresenter struct {
	mu     sync.Mutex
	snaps  []Snapshot
	levels []Level
}

func (p *recordingPresenter) Render(s Snapshot) {
	p.mu.Lock()
	p.snaps = append(p.snaps, s)
	p.mu.Unlock()
}

func (p *recordingPresenter) RenderLevel(l Level) {
	p.mu.Lock()
	p.levels = append(p.levels, l)
	p.mu.Unlock()
}

func (p *recordingPresenter) snapshots() []Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Snapshot, len(p.snaps))
	copy(out, p.snaps)
	return out
}

func (p *recordingPresenter) levelCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.levels)
}

// harness bundles a controller with its fakes
type harness struct {
	ctrl        *Controller
	recorder    *fakeRecorder
	transcriber *fakeTranscriber
	agent       *fakeAgent
	synthesizer *fakeSynthesizer
	player      *fakePlayer
	presenter   *recordingPresenter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		recorder:    &fakeRecorder{blob: audio.Blob{Data: []byte("webm"), MIMEType: audio.MIMETypeWebM}},
		transcriber: &fakeTranscriber{text: "hello"},
		agent:       &fakeAgent{reply: "hi there"},
		synthesizer: &fakeSynthesizer{speech: tts.NewSpeech(make([]int16, 1600), 16000)},
		player:      newFakePlayer(),
		presenter:   &recordingPresenter{},
	}
	h.start(t)
	return h
}

// start builds the controller; call again after changing fakes' wiring
func (h *harness) start(t *testing.T) {
	t.Helper()
	h.ctrl = NewController(context.Background(), Options{
		SessionID:         "test-session",
		Recorder:          h.recorder,
		Transcriber:       h.transcriber,
		Agent:             h.agent,
		Synthesizer:       h.synthesizer,
		Player:            h.player,
		Presenter:         h.presenter,
		StageTimeout:      time.Second,
		VisualizerFPS:     100,
		VisualizerMaxGain: 5,
	})
	t.Cleanup(func() { h.ctrl.Close() })
}

// record runs one full toggle on, toggle off
func (h *harness) record(t *testing.T) {
	t.Helper()
	if err := h.ctrl.ToggleRecording(); err != nil {
		t.Fatalf("ToggleRecording() start failed: %v", err)
	}
	if err := h.ctrl.ToggleRecording(); err != nil {
		t.Fatalf("ToggleRecording() stop failed: %v", err)
	}
}

func (h *harness) awaitPlay(t *testing.T) *tts.Speech {
	t.Helper()
	select {
	case s := <-h.player.played:
		return s
	case <-time.After(2 * time.Second):
		t.Fatalf("Timed out waiting for playback; state %s", h.ctrl.Snapshot().State)
		return nil
	}
}

func waitForState(t *testing.T, c *Controller, want State) {
	t.Helper()
	waitFor(t, func() bool { return c.Snapshot().State == want }, "state "+want.String())
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}
