package looper

import "time"

// State is the lifecycle state of a Message.
type State int

const (
	StatePending State = iota
	StateHandling
	StateHandled
	StateTimeout
	StateDiscarded
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateHandling:
		return "handling"
	case StateHandled:
		return "handled"
	case StateTimeout:
		return "timeout"
	case StateDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Func is a message callback.
type Func func(m *Message)

// Message is a unit of work delivered by a Looper.
//
// A message reaches exactly one terminal state: handled, timed out or
// discarded. OnFree (or the looper default free) runs exactly once after
// that, whatever the outcome.
type Message struct {
	What int
	Arg1 int
	Arg2 int
	Data any

	// Owner tags the message with the component that posted it, for
	// RemoveSelfByTag and RemoveSelfIf.
	Owner any

	// Timeout, when positive, is measured from the post time. A message
	// dequeued after its deadline is not handled; OnTimeout runs instead.
	Timeout time.Duration

	OnHandle  Func
	OnFree    Func
	OnDiscard Func
	OnTimeout Func

	state    State
	when     time.Time
	deadline time.Time
}

// NewMessage returns a message with the given tag.
func NewMessage(what int) *Message {
	return &Message{What: what}
}

// NewWithArgs returns a message with the given tag and integer arguments.
func NewWithArgs(what, arg1, arg2 int) *Message {
	return &Message{What: what, Arg1: arg1, Arg2: arg2}
}

// WithData sets the message payload.
func (m *Message) WithData(data any) *Message {
	m.Data = data
	return m
}

// WithOwner sets the owner token used by self removal.
func (m *Message) WithOwner(owner any) *Message {
	m.Owner = owner
	return m
}

// WithHandler sets a per-message handler that takes precedence over the looper default.
func (m *Message) WithHandler(f Func) *Message {
	m.OnHandle = f
	return m
}

// WithFree sets a per-message free callback that takes precedence over the looper default.
func (m *Message) WithFree(f Func) *Message {
	m.OnFree = f
	return m
}

// WithDiscard sets a callback run when the message is dropped without being handled.
func (m *Message) WithDiscard(f Func) *Message {
	m.OnDiscard = f
	return m
}

// WithTimeout sets the timeout callback and its duration.
func (m *Message) WithTimeout(f Func, timeout time.Duration) *Message {
	m.OnTimeout = f
	m.Timeout = timeout
	return m
}

// State returns the message state. Only meaningful inside callbacks.
func (m *Message) State() State {
	return m.state
}

// When returns the scheduled delivery time.
func (m *Message) When() time.Time {
	return m.when
}

// Info is a snapshot of a pending message.
type Info struct {
	What  int           `json:"what"`
	Arg1  int           `json:"arg1"`
	Arg2  int           `json:"arg2"`
	DueIn time.Duration `json:"due_in"`
}
