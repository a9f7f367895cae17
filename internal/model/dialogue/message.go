package dialogue

// Event is one inbound message, already classified by the delivery layer.
type Event struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
	IsStart   bool   `json:"isStart,omitempty"`
	IsCancel  bool   `json:"isCancel,omitempty"`
}

// ReplyKind tells transports what an outbound message is for.
type ReplyKind string

const (
	ReplyQuestion   ReplyKind = "question"
	ReplyProcessing ReplyKind = "processing"
	ReplyResult     ReplyKind = "result"
	ReplyCancelled  ReplyKind = "cancelled"
	ReplyHint       ReplyKind = "hint"
)

// Reply is one outbound message with an optional quick-reply menu.
// Options are grouped in rows; the row layout is a rendering hint only.
type Reply struct {
	Kind     ReplyKind  `json:"kind"`
	Text     string     `json:"text"`
	Options  [][]string `json:"options,omitempty"`
	Markdown bool       `json:"markdown,omitempty"`
}

// OutcomeKind tags the result of handling one event.
type OutcomeKind string

const (
	OutcomeContinue  OutcomeKind = "continue"
	OutcomeCancelled OutcomeKind = "cancelled"
	OutcomeCompleted OutcomeKind = "completed"
	OutcomeFailed    OutcomeKind = "failed"
	// OutcomeIdle is reported for input that arrives while no questionnaire is running.
	OutcomeIdle OutcomeKind = "idle"
)

// Outcome describes what a single event did to a session.
//
// Slots is a snapshot taken before any reset, so a cancelled or completed run still
// reports what was collected. Prompt and Recommendation are set once generation ran;
// Reason carries the generation failure for OutcomeFailed.
type Outcome struct {
	Kind           OutcomeKind     `json:"kind"`
	Next           State           `json:"next"`
	Slots          map[Slot]string `json:"slots,omitempty"`
	Prompt         string          `json:"-"`
	Recommendation string          `json:"recommendation,omitempty"`
	Reason         string          `json:"reason,omitempty"`
}

// Terminal reports whether the outcome ended the run.
func (o Outcome) Terminal() bool {
	switch o.Kind {
	case OutcomeCancelled, OutcomeCompleted, OutcomeFailed:
		return true
	default:
		return false
	}
}
