package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"github.com/room4-2/aasha/metrics"
	"github.com/room4-2/aasha/session"
)

// ErrUnexpectedEvent is matched by every *UnexpectedEventError.
var ErrUnexpectedEvent = errors.New("unexpected event")

// UnexpectedEventError reports an event with no transition from the session's
// stage. The accompanying Reply still moves the caller somewhere sensible.
type UnexpectedEventError struct {
	Stage session.Stage
	Kind  EventKind
}

func (e *UnexpectedEventError) Error() string {
	return fmt.Sprintf("unexpected %s event in stage %s", e.Kind, e.Stage)
}

func (e *UnexpectedEventError) Unwrap() error {
	return ErrUnexpectedEvent
}

// Store holds the sessions the router works on.
type Store interface {
	Start(ctx context.Context, phoneNumber string) *session.CallSession
	GetOrCreate(ctx context.Context, phoneNumber string) *session.CallSession
	Save(ctx context.Context, cs *session.CallSession)
}

type transitionKey struct {
	stage session.Stage
	kind  EventKind
	heard bool // the event carried caller speech
}

// handler runs one turn with the session locked and returns the stage to move to.
type handler func(r *Router, ctx context.Context, cs *session.CallSession, ev Event) (session.Stage, Reply)

type transition struct {
	to     []session.Stage
	handle handler
}

// transitions is the whole dialogue. CallStarted is accepted in any stage and is
// handled before the table is consulted.
var transitions = map[transitionKey]transition{
	{session.StageLanguageSelection, EventLanguageChosen, false}: {
		to:     []session.Stage{session.StageInformationGathering},
		handle: (*Router).chooseLanguage,
	},
	{session.StageInformationGathering, EventInformation, true}: {
		to:     []session.Stage{session.StageInformationGathering, session.StageServicesDispatched},
		handle: (*Router).gatherInformation,
	},
	{session.StageInformationGathering, EventInformation, false}: {
		to:     []session.Stage{session.StageInformationGathering},
		handle: (*Router).repromptInformation,
	},
	{session.StageServicesDispatched, EventDispatch, false}: {
		to:     []session.Stage{session.StageOngoingSupport},
		handle: (*Router).dispatch,
	},
	{session.StageServicesDispatched, EventSupport, true}: {
		to:     []session.Stage{session.StageOngoingSupport},
		handle: (*Router).support,
	},
	{session.StageOngoingSupport, EventSupport, true}: {
		to:     []session.Stage{session.StageOngoingSupport},
		handle: (*Router).support,
	},
	{session.StageServicesDispatched, EventSupport, false}: {
		to:     []session.Stage{session.StageOngoingSupport},
		handle: (*Router).closeCall,
	},
	{session.StageOngoingSupport, EventSupport, false}: {
		to:     []session.Stage{session.StageOngoingSupport},
		handle: (*Router).closeCall,
	},
}

// DefaultTurnBudget bounds the model calls of one turn so the reply reaches
// Twilio before its 15 second webhook timeout.
const DefaultTurnBudget = 12 * time.Second

// Router drives each call through its stages.
type Router struct {
	store      Store
	classifier *Classifier
	composer   *Composer
	turnBudget time.Duration
}

func NewRouter(store Store, classifier *Classifier, composer *Composer) *Router {
	return &Router{
		store:      store,
		classifier: classifier,
		composer:   composer,
		turnBudget: DefaultTurnBudget,
	}
}

// WithTurnBudget sets the deadline shared by every model call in a turn.
// Non-positive values keep the current budget.
func (r *Router) WithTurnBudget(d time.Duration) *Router {
	if d > 0 {
		r.turnBudget = d
	}
	return r
}

// Handle processes one inbound event for phoneNumber. Turns for the same number
// are serialized; different numbers run in parallel.
//
// A non-nil error is always accompanied by a usable Reply.
func (r *Router) Handle(ctx context.Context, phoneNumber string, ev Event) (Reply, error) {
	if ev.Kind == EventCallStarted {
		return r.startCall(ctx, phoneNumber), nil
	}

	cs := r.store.GetOrCreate(ctx, phoneNumber)
	cs.Lock()
	cs.Touch()

	stage := cs.Stage
	heard := (ev.Kind == EventInformation || ev.Kind == EventSupport) && strings.TrimSpace(ev.Transcript) != ""
	metrics.Turns.WithLabelValues(string(stage), string(ev.Kind)).Inc()

	var (
		reply Reply
		err   error
	)
	if t, ok := transitions[transitionKey{stage, ev.Kind, heard}]; ok {
		turnCtx, cancel := context.WithTimeout(ctx, r.turnBudget)
		var next session.Stage
		next, reply = t.handle(r, turnCtx, cs, ev)
		if errors.Is(turnCtx.Err(), context.DeadlineExceeded) {
			log.Printf("⏱️ [%s] %s turn ran out of its %s budget", cs.ShortID(), ev.Kind, r.turnBudget)
		}
		cancel()
		if slices.Contains(t.to, next) {
			cs.Stage = next
		} else {
			err = fmt.Errorf("transition %s/%s produced stage %s", stage, ev.Kind, next)
		}
	} else {
		err = &UnexpectedEventError{Stage: stage, Kind: ev.Kind}
		reply = recoveryReply(cs)
		metrics.UnexpectedEvents.WithLabelValues(string(stage), string(ev.Kind)).Inc()
		log.Printf("⚠️ [%s] %v, recovering", cs.ShortID(), err)
	}
	cs.Unlock()

	r.store.Save(ctx, cs)
	return reply, err
}

func (r *Router) startCall(ctx context.Context, phoneNumber string) Reply {
	cs := r.store.Start(ctx, phoneNumber)
	log.Printf("📞 [%s] Incoming call from %s", cs.ShortID(), phoneNumber)
	metrics.Turns.WithLabelValues(string(session.StageLanguageSelection), string(EventCallStarted)).Inc()

	return languageMenuReply()
}

func languageMenuReply() Reply {
	return Reply{
		Gather: &Gather{
			Input:     InputDigits,
			NumDigits: 1,
			Timeout:   languageMenuTimeout,
			Next:      EventLanguageChosen,
			Prompt:    &Utterance{Text: languageMenu, Language: session.Hindi},
		},
		// No digit: choose with none, which means Hindi.
		Redirect: EventLanguageChosen,
	}
}

func (r *Router) chooseLanguage(ctx context.Context, cs *session.CallSession, ev Event) (session.Stage, Reply) {
	lang := session.Hindi
	if strings.TrimSpace(ev.Digits) == "1" {
		lang = session.English
	}
	cs.Language = lang
	log.Printf("🌐 [%s] Language set to %s", cs.ShortID(), lang.Code())

	var reply Reply
	reply.say(greetingPhrase.in(lang), lang)
	reply.Gather = speechGather(EventInformation, lang, openingTimeout)
	reply.Gather.Enhanced = true
	reply.Redirect = EventInformation
	return session.StageInformationGathering, reply
}

func (r *Router) gatherInformation(ctx context.Context, cs *session.CallSession, ev Event) (session.Stage, Reply) {
	lang := cs.Language
	log.Printf("💬 [%s] Information from %s: %s", cs.ShortID(), cs.PhoneNumber, ev.Transcript)

	c := r.classifier.Classify(ctx, ev.Transcript, lang)
	UpdateRequiredInfo(cs, c)
	cs.QuestionsAsked++

	next := NextMissing(cs)
	if next == session.Ready {
		log.Printf("✅ [%s] All required information obtained after %d questions", cs.ShortID(), cs.QuestionsAsked)
		return session.StageServicesDispatched, Reply{Redirect: EventDispatch}
	}

	var reply Reply
	reply.say(r.composer.Question(ctx, cs, next, ev.Transcript), lang)
	reply.Gather = speechGather(EventInformation, lang, questionTimeout)
	reply.Redirect = EventInformation
	return session.StageInformationGathering, reply
}

func (r *Router) repromptInformation(ctx context.Context, cs *session.CallSession, ev Event) (session.Stage, Reply) {
	var reply Reply
	reply.say(speakClearlyPhrase.in(cs.Language), cs.Language)
	reply.Gather = speechGather(EventInformation, cs.Language, openingTimeout)
	reply.Redirect = EventInformation
	return session.StageInformationGathering, reply
}

func (r *Router) dispatch(ctx context.Context, cs *session.CallSession, ev Event) (session.Stage, Reply) {
	lang := cs.Language
	emergencyType := slotValueOr(cs, session.SlotEmergencyType, "emergency")
	location := slotValueOr(cs, session.SlotLocation, "your location")

	var reply Reply
	reply.say(r.composer.DispatchConfirmation(ctx, lang, emergencyType, location), lang)
	reply.say(r.composer.SafetyInstruction(ctx, lang, emergencyType), lang)

	cs.DispatchedAt = time.Now()
	metrics.Dispatches.WithLabelValues(emergencyType).Inc()
	log.Printf("🚨 [%s] Dispatching for %s at %s", cs.ShortID(), emergencyType, location)

	reply.Gather = speechGather(EventSupport, lang, dispatchTimeout)
	reply.Gather.Prompt = &Utterance{Text: helpOnTheWayPhrase.in(lang), Language: lang}
	reply.Redirect = EventSupport
	return session.StageOngoingSupport, reply
}

// support answers a caller update. The closing remark and hangup follow the
// gather, so they are only reached if the caller stays silent.
func (r *Router) support(ctx context.Context, cs *session.CallSession, ev Event) (session.Stage, Reply) {
	lang := cs.Language
	emergencyType := slotValueOr(cs, session.SlotEmergencyType, "medical")

	guidance := r.composer.SupportGuidance(ctx, lang, emergencyType, ev.Transcript)
	log.Printf("🤝 [%s] Ongoing support to %s: %s -> %s", cs.ShortID(), cs.PhoneNumber, ev.Transcript, guidance)

	var reply Reply
	reply.say(guidance, lang)
	reply.Gather = speechGather(EventSupport, lang, supportTimeout)
	reply.Gather.Prompt = &Utterance{Text: anythingElsePhrase.in(lang), Language: lang}
	reply.AfterGather = []Utterance{{Text: closingPhrase.in(lang), Language: lang}}
	reply.Hangup = true
	return session.StageOngoingSupport, reply
}

func (r *Router) closeCall(ctx context.Context, cs *session.CallSession, ev Event) (session.Stage, Reply) {
	cs.Ended = true
	log.Printf("👋 [%s] Caller silent, closing call", cs.ShortID())

	var reply Reply
	reply.say(closingPhrase.in(cs.Language), cs.Language)
	reply.Hangup = true
	return session.StageOngoingSupport, reply
}

// recoveryReply sends the caller back to the webhook for the session's stage.
func recoveryReply(cs *session.CallSession) Reply {
	lang := cs.Language
	switch cs.Stage {
	case session.StageInformationGathering:
		return Reply{Redirect: EventInformation}
	case session.StageServicesDispatched:
		return Reply{Redirect: EventDispatch}
	case session.StageOngoingSupport:
		return Reply{
			Gather: &Gather{
				Input:    InputSpeech,
				Timeout:  supportTimeout,
				Next:     EventSupport,
				Language: lang.Resolved(),
				Prompt:   &Utterance{Text: anythingElsePhrase.in(lang), Language: lang},
			},
			AfterGather: []Utterance{{Text: closingPhrase.in(lang), Language: lang}},
			Hangup:      true,
		}
	default:
		return Reply{Redirect: EventCallStarted}
	}
}

func slotValueOr(cs *session.CallSession, name session.SlotName, fallback string) string {
	if slot := cs.RequiredInfo.Slot(name); slot.Obtained() && slot.Value() != "" {
		return slot.Value()
	}
	return fallback
}
