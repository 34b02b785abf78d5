package functions

import "google.golang.org/genai"

// Emergency categories, caller relations and confidence levels the classifier may answer with.
var (
	EmergencyTypes   = []string{"medical", "fire", "police", "disaster", "unknown"}
	CallerConditions = []string{"victim", "witness", "family", "unknown"}
	ConfidenceLevels = []string{"high", "medium", "low"}
)

// ClassificationSchema returns the response schema for classifying one caller utterance
func ClassificationSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"emergency_type": {
				Type:        genai.TypeString,
				Enum:        EmergencyTypes,
				Description: "Kind of emergency the caller describes",
			},
			"location_mentioned": {
				Type:        genai.TypeBoolean,
				Description: "Whether any address, landmark or area name was mentioned",
			},
			"location_details": {
				Type:        genai.TypeString,
				Nullable:    genai.Ptr(true),
				Description: "The location as spoken, or null",
			},
			"caller_condition": {
				Type:        genai.TypeString,
				Enum:        CallerConditions,
				Description: "The caller's relation to the emergency",
			},
			"people_count": {
				Type:        genai.TypeString,
				Description: "Number of people affected as spoken, or \"unknown\"",
			},
			"confidence": {
				Type: genai.TypeString,
				Enum: ConfidenceLevels,
			},
		},
		Required: []string{
			"emergency_type", "location_mentioned", "location_details",
			"caller_condition", "people_count", "confidence",
		},
		PropertyOrdering: []string{
			"emergency_type", "location_mentioned", "location_details",
			"caller_condition", "people_count", "confidence",
		},
	}
}
