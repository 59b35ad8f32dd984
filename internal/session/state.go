package session

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidTransition is returned when an event is not allowed in the current state
var ErrInvalidTransition = errors.New("session: invalid state transition")

// State of one assistant session
type State int

const (
	StateIdle       State = iota // Waiting for the user to start a recording
	StateRecording               // Microphone open
	StateProcessing              // Transcribing and asking the agent
	StateSpeaking                // Reply synthesized or playing
	StateError                   // A stage failed; resets to Idle once published
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText renders the state by name in JSON snapshots
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name written by MarshalText
func (s *State) UnmarshalText(text []byte) error {
	for st := StateIdle; st <= StateError; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("session: unknown state %q", text)
}

// Event drives the state machine
type Event int

const (
	EventStartRecording Event = iota
	EventStopRecording
	EventNoSpeech
	EventBeginSpeaking
	EventPlaybackEnded
	EventFail
	EventReset
)

func (e Event) String() string {
	switch e {
	case EventStartRecording:
		return "start_recording"
	case EventStopRecording:
		return "stop_recording"
	case EventNoSpeech:
		return "no_speech"
	case EventBeginSpeaking:
		return "begin_speaking"
	case EventPlaybackEnded:
		return "playback_ended"
	case EventFail:
		return "fail"
	case EventReset:
		return "reset"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

type transition struct {
	from  State
	event Event
}

var transitions = map[transition]State{
	{StateIdle, EventStartRecording}:      StateRecording,
	{StateRecording, EventStopRecording}:  StateProcessing,
	{StateRecording, EventFail}:           StateError,
	{StateProcessing, EventNoSpeech}:      StateIdle,
	{StateProcessing, EventBeginSpeaking}: StateSpeaking,
	{StateProcessing, EventFail}:          StateError,
	{StateSpeaking, EventPlaybackEnded}:   StateIdle,
	{StateSpeaking, EventFail}:            StateError,
	{StateError, EventReset}:              StateIdle,
}

// Machine is the session state machine. The zero value starts Idle.
type Machine struct {
	mu       sync.Mutex
	state    State
	observer func(from, to State, event Event)
}

// NewMachine creates a machine in Idle; observer, if set, sees every transition
func NewMachine(observer func(from, to State, event Event)) *Machine {
	return &Machine{observer: observer}
}

// State returns the current state
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Fire applies an event and returns the new state
func (m *Machine) Fire(event Event) (State, error) {
	m.mu.Lock()
	from := m.state
	to, ok := transitions[transition{from, event}]
	if !ok {
		m.mu.Unlock()
		return from, fmt.Errorf("%w: %s in %s", ErrInvalidTransition, event, from)
	}
	m.state = to
	observer := m.observer
	m.mu.Unlock()

	if observer != nil {
		observer(from, to, event)
	}
	return to, nil
}
