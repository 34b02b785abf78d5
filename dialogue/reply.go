package dialogue

import "github.com/room4-2/aasha/session"

// EventKind is the kind of inbound turn. Each kind has its own webhook.
type EventKind string

const (
	EventCallStarted    EventKind = "call_started"
	EventLanguageChosen EventKind = "language_chosen"
	EventInformation    EventKind = "information"
	EventDispatch       EventKind = "dispatch"
	EventSupport        EventKind = "support"
)

// Event is one inbound turn for a call.
type Event struct {
	Kind       EventKind
	Digits     string // LanguageChosen only
	Transcript string // Information and Support only; empty means no input
}

// Utterance is text spoken in one language.
type Utterance struct {
	Text     string
	Language session.Language
}

// InputMode is what a Gather listens for.
type InputMode string

const (
	InputDigits InputMode = "dtmf"
	InputSpeech InputMode = "speech"
)

// Gather collects caller input and sends it as the Next event.
type Gather struct {
	Input     InputMode
	NumDigits int
	Timeout   int // seconds
	Next      EventKind
	Language  session.Language
	Enhanced  bool
	Prompt    *Utterance // spoken while listening
}

// Reply is the call-control response for one turn, rendered in this order:
// Say, Gather, AfterGather, Redirect, Hangup. AfterGather and Redirect are only
// reached when the gather times out without input.
type Reply struct {
	Say         []Utterance
	Gather      *Gather
	AfterGather []Utterance
	Redirect    EventKind // empty for none
	Hangup      bool
}

func (r *Reply) say(text string, lang session.Language) {
	r.Say = append(r.Say, Utterance{Text: text, Language: lang})
}

// Gather timeouts in seconds.
const (
	languageMenuTimeout = 8
	openingTimeout      = 10
	questionTimeout     = 15
	dispatchTimeout     = 20
	supportTimeout      = 30
)

func speechGather(next EventKind, lang session.Language, timeout int) *Gather {
	return &Gather{
		Input:    InputSpeech,
		Timeout:  timeout,
		Next:     next,
		Language: lang.Resolved(),
	}
}
