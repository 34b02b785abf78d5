package session

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Stage is one phase of the call dialogue.
type Stage string

const (
	StageLanguageSelection    Stage = "language_selection"
	StageInformationGathering Stage = "information_gathering"
	StageServicesDispatched   Stage = "services_dispatched"
	StageOngoingSupport       Stage = "ongoing_support"
)

// Language is the caller's chosen language. The zero value means not yet chosen.
type Language string

const (
	English Language = "en"
	Hindi   Language = "hi"
)

// Resolved returns the language to speak in. Unresolved callers hear Hindi,
// the same default the language menu falls back to.
func (l Language) Resolved() Language {
	if l == English {
		return English
	}
	return Hindi
}

// Code returns the BCP-47 tag the telephony platform expects for speech.
func (l Language) Code() string {
	if l.Resolved() == English {
		return "en-US"
	}
	return "hi-IN"
}

// SlotName identifies one of the required facts.
type SlotName string

const (
	SlotLocation        SlotName = "location"
	SlotEmergencyType   SlotName = "emergency_type"
	SlotCallerCondition SlotName = "caller_condition"
	SlotPeopleInvolved  SlotName = "people_involved"

	// Ready is returned instead of a slot when every required fact is known.
	Ready SlotName = "dispatch_ready"
)

// SlotOrder is the priority in which missing facts are asked for.
var SlotOrder = [...]SlotName{SlotLocation, SlotEmergencyType, SlotCallerCondition, SlotPeopleInvolved}

// Slot holds one required fact. Once obtained it stays obtained.
type Slot struct {
	obtained bool
	value    string
}

func (s Slot) Obtained() bool { return s.obtained }
func (s Slot) Value() string  { return s.value }

// RequiredInfo is the set of facts needed before dispatch.
type RequiredInfo struct {
	slots [len(SlotOrder)]Slot
}

func slotIndex(name SlotName) int {
	for i, n := range SlotOrder {
		if n == name {
			return i
		}
	}
	return -1
}

// Obtain marks a slot obtained and records its value. Slots are never cleared.
func (r *RequiredInfo) Obtain(name SlotName, value string) {
	i := slotIndex(name)
	if i < 0 {
		return
	}
	r.slots[i].obtained = true
	r.slots[i].value = value
}

// Slot returns a copy of the named slot.
func (r *RequiredInfo) Slot(name SlotName) Slot {
	i := slotIndex(name)
	if i < 0 {
		return Slot{}
	}
	return r.slots[i]
}

// CallSession is the per-phone-number dialogue state.
//
// Callers mutate a session only while holding its lock; the router takes it for
// the length of a turn so two webhooks for the same number never interleave.
type CallSession struct {
	ID             string
	PhoneNumber    string
	Stage          Stage
	Language       Language
	RequiredInfo   RequiredInfo
	QuestionsAsked int
	StartTime      time.Time
	DispatchedAt   time.Time
	Ended          bool

	lastActivity atomic.Int64
	mu           sync.Mutex
}

// NewCallSession creates a session at the start of the dialogue.
func NewCallSession(phoneNumber string) *CallSession {
	now := time.Now()
	cs := &CallSession{
		ID:          uuid.New().String(),
		PhoneNumber: phoneNumber,
		Stage:       StageLanguageSelection,
		StartTime:   now,
	}
	cs.lastActivity.Store(now.UnixNano())
	return cs
}

func (cs *CallSession) Lock()   { cs.mu.Lock() }
func (cs *CallSession) Unlock() { cs.mu.Unlock() }

// ShortID is the log prefix used for this call.
func (cs *CallSession) ShortID() string {
	if len(cs.ID) < 8 {
		return cs.ID
	}
	return cs.ID[:8]
}

// Touch records activity on the session. Safe without the lock.
func (cs *CallSession) Touch() {
	cs.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity returns the time of the last turn. Safe without the lock.
func (cs *CallSession) LastActivity() time.Time {
	return time.Unix(0, cs.lastActivity.Load())
}

// SlotSnapshot is the JSON view of a slot.
type SlotSnapshot struct {
	Obtained bool    `json:"obtained"`
	Value    *string `json:"value"`
}

// Snapshot is a read-only copy of a session for status queries and monitoring.
type Snapshot struct {
	CallID         string                    `json:"call_id"`
	PhoneNumber    string                    `json:"phone_number"`
	Stage          Stage                     `json:"stage"`
	Language       Language                  `json:"language,omitempty"`
	LanguageCode   string                    `json:"language_code,omitempty"`
	RequiredInfo   map[SlotName]SlotSnapshot `json:"required_info"`
	QuestionsAsked int                       `json:"questions_asked"`
	StartTime      time.Time                 `json:"start_time"`
	LastActivity   time.Time                 `json:"last_activity"`
	DispatchedAt   *time.Time                `json:"dispatched_at,omitempty"`
	Ended          bool                      `json:"ended"`
}

// Snapshot copies the session under its lock.
func (cs *CallSession) Snapshot() Snapshot {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	snap := Snapshot{
		CallID:         cs.ID,
		PhoneNumber:    cs.PhoneNumber,
		Stage:          cs.Stage,
		Language:       cs.Language,
		RequiredInfo:   make(map[SlotName]SlotSnapshot, len(SlotOrder)),
		QuestionsAsked: cs.QuestionsAsked,
		StartTime:      cs.StartTime,
		LastActivity:   cs.LastActivity(),
		Ended:          cs.Ended,
	}
	if cs.Language != "" {
		snap.LanguageCode = cs.Language.Code()
	}
	if !cs.DispatchedAt.IsZero() {
		at := cs.DispatchedAt
		snap.DispatchedAt = &at
	}
	for _, name := range SlotOrder {
		slot := cs.RequiredInfo.Slot(name)
		s := SlotSnapshot{Obtained: slot.Obtained()}
		if slot.Obtained() {
			v := slot.Value()
			s.Value = &v
		}
		snap.RequiredInfo[name] = s
	}
	return snap
}
