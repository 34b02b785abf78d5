package functions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/genai"
)

func TestClassificationSchemaRequiresEveryField(t *testing.T) {
	schema := ClassificationSchema()

	assert.Equal(t, genai.TypeObject, schema.Type)
	assert.Len(t, schema.Required, len(schema.Properties))
	for _, name := range schema.Required {
		assert.Contains(t, schema.Properties, name)
	}
	assert.Equal(t, EmergencyTypes, schema.Properties["emergency_type"].Enum)
	assert.True(t, *schema.Properties["location_details"].Nullable)
}
