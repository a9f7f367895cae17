package dialogue

import "time"

// State is the position of a session in the questionnaire.
type State string

const (
	StateInit              State = "init"
	StateAwaitingType      State = "awaiting_type"
	StateAwaitingBudget    State = "awaiting_budget"
	StateAwaitingClimate   State = "awaiting_climate"
	StateAwaitingDuration  State = "awaiting_duration"
	StateAwaitingCompanion State = "awaiting_companion"
	StateComplete          State = "complete"
	StateTerminated        State = "terminated"
)

// Slot names one travel preference collected from the user.
type Slot string

const (
	SlotType      Slot = "type"
	SlotBudget    Slot = "budget"
	SlotClimate   Slot = "climate"
	SlotDuration  Slot = "duration"
	SlotCompanion Slot = "companion"
)

var chain = []struct {
	state State
	slot  Slot
}{
	{StateAwaitingType, SlotType},
	{StateAwaitingBudget, SlotBudget},
	{StateAwaitingClimate, SlotClimate},
	{StateAwaitingDuration, SlotDuration},
	{StateAwaitingCompanion, SlotCompanion},
}

// Slots returns the slots in questionnaire order.
func Slots() []Slot {
	out := make([]Slot, 0, len(chain))
	for _, link := range chain {
		out = append(out, link.slot)
	}
	return out
}

// AwaitingStates returns the collecting states in questionnaire order.
func AwaitingStates() []State {
	out := make([]State, 0, len(chain))
	for _, link := range chain {
		out = append(out, link.state)
	}
	return out
}

// Awaiting reports whether the state is waiting for an answer.
func (s State) Awaiting() bool {
	_, ok := s.Slot()
	return ok
}

// Slot returns the slot collected while in this state.
func (s State) Slot() (Slot, bool) {
	for _, link := range chain {
		if link.state == s {
			return link.slot, true
		}
	}
	return "", false
}

// Next returns the state following s. The last collecting state leads to StateComplete.
func (s State) Next() State {
	for i, link := range chain {
		if link.state != s {
			continue
		}
		if i+1 < len(chain) {
			return chain[i+1].state
		}
		return StateComplete
	}
	return s
}

// Session is one user's run through the questionnaire.
// Slots only holds the answers for states already passed.
type Session struct {
	ID        string          `json:"id"`
	State     State           `json:"state"`
	Slots     map[Slot]string `json:"slots"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// NewSession returns a session in StateInit.
func NewSession(id string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		State:     StateInit,
		Slots:     make(map[Slot]string, len(chain)),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Reset clears collected slots and returns the session to StateInit.
func (s *Session) Reset() {
	s.State = StateInit
	s.Slots = make(map[Slot]string, len(chain))
	s.touch()
}

// Begin discards any run in progress and waits for the first answer.
func (s *Session) Begin() {
	s.Reset()
	s.State = StateAwaitingType
}

// Record stores value for the current state's slot and advances to the next state.
// It returns false when the session is not collecting.
func (s *Session) Record(value string) bool {
	slot, ok := s.State.Slot()
	if !ok {
		return false
	}
	if s.Slots == nil {
		s.Slots = make(map[Slot]string, len(chain))
	}
	s.Slots[slot] = value
	s.State = s.State.Next()
	s.touch()
	return true
}

// Snapshot returns a copy of the collected slots.
func (s *Session) Snapshot() map[Slot]string {
	out := make(map[Slot]string, len(s.Slots))
	for k, v := range s.Slots {
		out[k] = v
	}
	return out
}

// Complete reports whether every slot has been collected.
func (s *Session) Complete() bool {
	for _, link := range chain {
		if _, ok := s.Slots[link.slot]; !ok {
			return false
		}
	}
	return true
}

func (s *Session) touch() {
	s.UpdatedAt = time.Now().UTC()
}

// Clone returns a copy that shares no state with s.
func (s *Session) Clone() Session {
	c := *s
	c.Slots = s.Snapshot()
	return c
}
