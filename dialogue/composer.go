package dialogue

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/room4-2/aasha/metrics"
	"github.com/room4-2/aasha/session"
)

// Composer produces the assistant's spoken turns. Every method returns
// something speakable; model failures become the apology phrase.
type Composer struct {
	llm Generator
}

func NewComposer(llm Generator) *Composer {
	return &Composer{llm: llm}
}

// Question asks for slot. The caller must hold the session lock.
func (c *Composer) Question(ctx context.Context, cs *session.CallSession, slot session.SlotName, lastUtterance string) string {
	lang := cs.Language
	situation := fmt.Sprintf("Already asked %d questions. Need: %s", cs.QuestionsAsked, slot)

	switch slot {
	case session.SlotLocation:
		return c.generate(ctx, purposeLocation, lang, buildPrompt(
			"Need exact location. Caller said: "+lastUtterance, locationInstruction, lang, situation, locationWordLimit))
	case session.SlotEmergencyType:
		return emergencyTypePhrase.in(lang)
	case session.SlotCallerCondition:
		return c.generate(ctx, purposeDetails, lang, buildPrompt(
			"Need to know caller's relation to emergency: "+lastUtterance, detailsInstruction, lang, situation, detailsWordLimit))
	default:
		return c.generate(ctx, purposeDetails, lang, buildPrompt(
			lastUtterance, detailsInstruction, lang, situation, detailsWordLimit))
	}
}

// DispatchConfirmation tells the caller which services are coming and where.
func (c *Composer) DispatchConfirmation(ctx context.Context, lang session.Language, emergencyType, location string) string {
	summary := fmt.Sprintf("Emergency: %s, Location: %s", emergencyType, location)
	return c.generate(ctx, purposeDispatch, lang, buildPrompt(summary, dispatchInstruction, lang, "", dispatchWordLimit))
}

// SafetyInstruction gives one immediate instruction for the emergency type.
func (c *Composer) SafetyInstruction(ctx context.Context, lang session.Language, emergencyType string) string {
	return c.generate(ctx, purposeSafety, lang, buildPrompt(
		"Emergency type: "+emergencyType, safetyInstruction, lang, "", safetyWordLimit))
}

// SupportGuidance answers a caller update while services are on the way.
func (c *Composer) SupportGuidance(ctx context.Context, lang session.Language, emergencyType, update string) string {
	situation := fmt.Sprintf("Emergency type: %s, Services already dispatched", emergencyType)
	return c.generate(ctx, purposeSupport, lang, buildPrompt(
		"Ongoing emergency support needed. Update: "+update, safetyInstruction, lang, situation, safetyWordLimit))
}

func (c *Composer) generate(ctx context.Context, purpose string, lang session.Language, prompt string) string {
	if c.llm == nil {
		metrics.LLMRequests.WithLabelValues(purpose, "error").Inc()
		return Apology(lang)
	}

	start := time.Now()
	text, err := c.llm.Generate(ctx, prompt, nil)
	metrics.LLMDuration.WithLabelValues(purpose).Observe(time.Since(start).Seconds())
	if err != nil {
		log.Printf("❌ Failed to compose %s response: %v", purpose, err)
		metrics.LLMRequests.WithLabelValues(purpose, "error").Inc()
		return Apology(lang)
	}
	metrics.LLMRequests.WithLabelValues(purpose, "ok").Inc()
	return text
}
