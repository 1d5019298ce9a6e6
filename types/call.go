package types

import (
	"time"
)

// EventKind identifies the canonical inbound call occurrence after
// normalization, regardless of which wire shape the provider used.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventCallInitiated
	EventCallAnswered
	EventCallEnded
	EventSpeechRecognized
	EventDTMFDigits
	EventFunctionInvocation
)

func (k EventKind) String() string {
	switch k {
	case EventCallInitiated:
		return "call-initiated"
	case EventCallAnswered:
		return "call-answered"
	case EventCallEnded:
		return "call-ended"
	case EventSpeechRecognized:
		return "speech-recognized"
	case EventDTMFDigits:
		return "dtmf-digits"
	case EventFunctionInvocation:
		return "function-invocation"
	default:
		return "unknown"
	}
}

// CallEvent is the single event model every provider webhook is reduced to.
// At most one of SpeechText, Digits and FunctionName is populated, matching
// Kind.
type CallEvent struct {
	Kind           EventKind
	Caller         string
	Callee         string
	ProviderCallID string
	SpeechText     string
	Digits         string
	FunctionName   string
	FunctionArgs   map[string]any
	// Raw carries provider-specific fields needed later in the pipeline,
	// e.g. the Telnyx call_control_id handle.
	Raw map[string]string
}

// Step is the caller's position in the dialogue state machine.
type Step int

const (
	StepGreeting Step = iota
	StepMainMenu
	StepAppointmentType
	StepScheduleCollect
	StepInfoDelivery
	StepConfirm
	StepEnded
)

func (s Step) String() string {
	switch s {
	case StepGreeting:
		return "greeting"
	case StepMainMenu:
		return "main_menu"
	case StepAppointmentType:
		return "appointment_type"
	case StepScheduleCollect:
		return "schedule_collect"
	case StepInfoDelivery:
		return "info_delivery"
	case StepConfirm:
		return "confirm"
	case StepEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Role tags a conversation turn.
type Role int

const (
	RoleCaller Role = iota
	RoleAssistant
)

func (r Role) String() string {
	if r == RoleCaller {
		return "caller"
	}
	return "assistant"
}

// Turn is one exchange in the bounded conversation history.
type Turn struct {
	Role Role
	Text string
}

// HistoryLimit bounds the per-caller message window. Older turns are
// dropped, not persisted.
const HistoryLimit = 5

// Slot names collected during booking, in prompting order.
const (
	SlotName    = "name"
	SlotPhone   = "phone"
	SlotReason  = "reason"
	SlotDate    = "date"
	SlotTime    = "time"
	SlotPayment = "payment"
)

// SlotOrder is the sequence in which unfilled slots are prompted, one per
// turn.
var SlotOrder = []string{SlotName, SlotPhone, SlotReason, SlotDate, SlotTime, SlotPayment}

// ConversationContext is the per-caller state accumulated across stateless
// webhook callbacks. It is owned by the session store and must only be
// mutated inside the store's per-caller critical section.
type ConversationContext struct {
	Step      Step
	Slots     map[string]string
	History   []Turn
	VisitType string
	CreatedAt time.Time

	// MissCount tracks consecutive unrecognized inputs; two in a row hand
	// the caller off to a human instead of looping forever.
	MissCount int

	// LastFingerprint and LastAction let an identical provider redelivery
	// re-issue the previous reply without re-applying side effects.
	LastFingerprint string
	LastAction      *DialogueAction
}

// NewConversationContext returns a fresh context at the greeting step.
func NewConversationContext() *ConversationContext {
	return &ConversationContext{
		Step:      StepGreeting,
		Slots:     make(map[string]string),
		CreatedAt: time.Now(),
	}
}

// PushTurn appends to the history window, dropping the oldest turns beyond
// HistoryLimit.
func (c *ConversationContext) PushTurn(role Role, text string) {
	c.History = append(c.History, Turn{Role: role, Text: text})
	if len(c.History) > HistoryLimit {
		c.History = c.History[len(c.History)-HistoryLimit:]
	}
}

// InputMode declares what the caller is expected to provide next.
type InputMode int

const (
	InputNone InputMode = iota
	InputDTMF
	InputSpeech
)

func (m InputMode) String() string {
	switch m {
	case InputDTMF:
		return "dtmf"
	case InputSpeech:
		return "speech"
	default:
		return "none"
	}
}

// DialogueAction is the policy's decision: what to say, what to collect
// next, and which appointment side effects to forward.
type DialogueAction struct {
	SpokenText     string
	Input          InputMode
	NumDigits      int
	TimeoutSeconds int
	Terminal       bool
	Commands       []AppointmentCommand
}

// AppointmentOp is the kind of scheduling instruction.
type AppointmentOp int

const (
	OpSchedule AppointmentOp = iota
	OpCancel
	OpCheckAvailability
)

func (o AppointmentOp) String() string {
	switch o {
	case OpCancel:
		return "cancel"
	case OpCheckAvailability:
		return "checkAvailability"
	default:
		return "schedule"
	}
}

// AppointmentCommand is a fully-resolved scheduling instruction. A schedule
// command is only ever emitted with non-empty patient name, phone, date and
// time.
type AppointmentCommand struct {
	Op          AppointmentOp
	PatientName string
	Phone       string
	Reason      string
	Date        string
	Time        string
	Payment     string
}
