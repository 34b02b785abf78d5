package dialogue

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/room4-2/aasha/functions"
	"github.com/room4-2/aasha/metrics"
	"github.com/room4-2/aasha/session"

	"github.com/bytedance/sonic"
	"google.golang.org/genai"
)

// Generator is the language-model service.
type Generator interface {
	Generate(ctx context.Context, prompt string, schema *genai.Schema) (string, error)
}

type EmergencyType string

const (
	EmergencyMedical  EmergencyType = "medical"
	EmergencyFire     EmergencyType = "fire"
	EmergencyPolice   EmergencyType = "police"
	EmergencyDisaster EmergencyType = "disaster"
	EmergencyUnknown  EmergencyType = "unknown"
)

type CallerCondition string

const (
	CallerVictim  CallerCondition = "victim"
	CallerWitness CallerCondition = "witness"
	CallerFamily  CallerCondition = "family"
	CallerUnknown CallerCondition = "unknown"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// PeopleUnknown is the people count when none was mentioned.
const PeopleUnknown = "unknown"

// Source records which path produced a classification.
type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

// Classification is the structured reading of one caller utterance. It lives
// for a single turn.
type Classification struct {
	EmergencyType     EmergencyType
	LocationMentioned bool
	LocationDetails   string // empty when none given
	CallerCondition   CallerCondition
	PeopleCount       string // PeopleUnknown when none given
	Confidence        Confidence
	Source            Source
}

// emergencyKeywords is tested in order; the first category with a match wins.
var emergencyKeywords = []struct {
	emergencyType EmergencyType
	keywords      []string
}{
	{EmergencyMedical, []string{"heart", "breathing", "chest pain", "unconscious", "bleeding", "accident", "injured", "sick", "doctor", "hospital", "ambulance", "pain", "hurt"}},
	{EmergencyFire, []string{"fire", "smoke", "burning", "explosion", "gas leak", "flames", "burn"}},
	{EmergencyPolice, []string{"crime", "theft", "violence", "fight", "robbery", "assault", "domestic", "kidnap", "threat", "attack"}},
	{EmergencyDisaster, []string{"flood", "earthquake", "cyclone", "building collapse", "landslide", "trapped", "storm"}},
}

// FallbackClassify classifies by keyword alone. It never fails and never calls
// the model.
func FallbackClassify(utterance string) Classification {
	result := Classification{
		EmergencyType:   EmergencyUnknown,
		CallerCondition: CallerUnknown,
		PeopleCount:     PeopleUnknown,
		Confidence:      ConfidenceLow,
		Source:          SourceFallback,
	}

	text := strings.ToLower(utterance)
	for _, category := range emergencyKeywords {
		for _, keyword := range category.keywords {
			if strings.Contains(text, keyword) {
				result.EmergencyType = category.emergencyType
				result.Confidence = ConfidenceMedium
				return result
			}
		}
	}
	return result
}

// ParseError reports a model reply that could not be read as a classification.
type ParseError struct {
	Reason string
	Reply  string
}

func (e *ParseError) Error() string {
	return "unparseable classification: " + e.Reason
}

// Classifier turns utterances into Classifications, using the model when it
// can and keywords when it cannot.
type Classifier struct {
	llm Generator
}

// NewClassifier creates a classifier. A nil llm classifies by keyword only.
func NewClassifier(llm Generator) *Classifier {
	return &Classifier{llm: llm}
}

// Classify reads one utterance. Model failures of any kind fall back to the
// keyword table, so a result is always returned.
func (c *Classifier) Classify(ctx context.Context, utterance string, lang session.Language) Classification {
	result, err := c.classifyWithModel(ctx, utterance, lang)
	if err != nil {
		log.Printf("⚠️ Classification falling back to keywords: %v", err)
		result = FallbackClassify(utterance)
	}
	metrics.Classifications.WithLabelValues(string(result.Source), string(result.EmergencyType)).Inc()
	return result
}

func (c *Classifier) classifyWithModel(ctx context.Context, utterance string, lang session.Language) (Classification, error) {
	if c.llm == nil {
		return Classification{}, fmt.Errorf("no language model configured")
	}

	start := time.Now()
	reply, err := c.llm.Generate(ctx, buildPrompt(utterance, classifierInstruction, lang, "", 0), functions.ClassificationSchema())
	metrics.LLMDuration.WithLabelValues(purposeClassify).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMRequests.WithLabelValues(purposeClassify, "error").Inc()
		return Classification{}, fmt.Errorf("classification request: %w", err)
	}

	result, err := parseClassification(reply)
	if err != nil {
		metrics.LLMRequests.WithLabelValues(purposeClassify, "unparseable").Inc()
		return Classification{}, err
	}
	metrics.LLMRequests.WithLabelValues(purposeClassify, "ok").Inc()
	return result, nil
}

// parseClassification reads the first well-formed JSON object in reply. Every
// field must be present with a known value; there is no partial result.
func parseClassification(reply string) (Classification, error) {
	fields, ok := firstJSONObject(reply)
	if !ok {
		return Classification{}, &ParseError{Reason: "no JSON object in reply", Reply: reply}
	}

	var result Classification

	emergencyType, err := enumField(fields, "emergency_type", functions.EmergencyTypes)
	if err != nil {
		return Classification{}, &ParseError{Reason: err.Error(), Reply: reply}
	}
	result.EmergencyType = EmergencyType(emergencyType)

	if result.LocationMentioned, err = boolField(fields, "location_mentioned"); err != nil {
		return Classification{}, &ParseError{Reason: err.Error(), Reply: reply}
	}

	details, present := fields["location_details"]
	if !present {
		return Classification{}, &ParseError{Reason: "missing location_details", Reply: reply}
	}
	if s, ok := details.(string); ok && !isNullText(s) {
		result.LocationDetails = strings.TrimSpace(s)
	}

	condition, err := enumField(fields, "caller_condition", functions.CallerConditions)
	if err != nil {
		return Classification{}, &ParseError{Reason: err.Error(), Reply: reply}
	}
	result.CallerCondition = CallerCondition(condition)

	if result.PeopleCount, err = peopleField(fields); err != nil {
		return Classification{}, &ParseError{Reason: err.Error(), Reply: reply}
	}

	confidence, err := enumField(fields, "confidence", functions.ConfidenceLevels)
	if err != nil {
		return Classification{}, &ParseError{Reason: err.Error(), Reply: reply}
	}
	result.Confidence = Confidence(confidence)
	result.Source = SourceModel

	return result, nil
}

// firstJSONObject scans for brace-delimited candidates left to right and returns
// the first that decodes as a JSON object.
func firstJSONObject(text string) (map[string]interface{}, bool) {
	for start := strings.IndexByte(text, '{'); start >= 0; {
		if end := matchingBrace(text, start); end > 0 {
			var fields map[string]interface{}
			if err := sonic.UnmarshalString(text[start:end+1], &fields); err == nil {
				return fields, true
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return nil, false
}

// matchingBrace returns the index of the brace closing the one at start, or -1.
func matchingBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func enumField(fields map[string]interface{}, name string, allowed []string) (string, error) {
	raw, present := fields[name]
	if !present {
		return "", fmt.Errorf("missing %s", name)
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%s is not a string", name)
	}
	s = strings.ToLower(strings.TrimSpace(s))
	for _, a := range allowed {
		if s == a {
			return s, nil
		}
	}
	return "", fmt.Errorf("%s has unknown value %q", name, s)
}

func boolField(fields map[string]interface{}, name string) (bool, error) {
	raw, present := fields[name]
	if !present {
		return false, fmt.Errorf("missing %s", name)
	}
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, fmt.Errorf("%s is not a boolean", name)
		}
		return b, nil
	default:
		return false, fmt.Errorf("%s is not a boolean", name)
	}
}

func peopleField(fields map[string]interface{}) (string, error) {
	raw, present := fields["people_count"]
	if !present {
		return "", fmt.Errorf("missing people_count")
	}
	switch v := raw.(type) {
	case nil:
		return PeopleUnknown, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case string:
		v = strings.TrimSpace(v)
		if isNullText(v) || strings.EqualFold(v, PeopleUnknown) {
			return PeopleUnknown, nil
		}
		return v, nil
	default:
		return "", fmt.Errorf("people_count has unexpected type %T", raw)
	}
}

func isNullText(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "none")
}
