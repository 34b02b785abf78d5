package twiml

import (
	"encoding/xml"
	"strings"
	"testing"

	"github.com/room4-2/aasha/dialogue"
	"github.com/room4-2/aasha/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderLanguageMenu(t *testing.T) {
	reply := dialogue.Reply{
		Gather: &dialogue.Gather{
			Input:     dialogue.InputDigits,
			NumDigits: 1,
			Timeout:   8,
			Next:      dialogue.EventLanguageChosen,
			Prompt:    &dialogue.Utterance{Text: "Press 1 for English. Press 2 for Hindi.", Language: session.Hindi},
		},
		Redirect: dialogue.EventLanguageChosen,
	}

	out, err := Render(reply)
	require.NoError(t, err)
	doc := string(out)

	assert.True(t, strings.HasPrefix(doc, xml.Header))
	assert.Contains(t, doc, `<Gather input="dtmf" numDigits="1" action="/set_lang" method="POST" timeout="8">`)
	assert.Contains(t, doc, `<Say language="hi-IN">Press 1 for English. Press 2 for Hindi.</Say>`)
	assert.Contains(t, doc, `<Redirect method="POST">/set_lang</Redirect>`)
	assert.NotContains(t, doc, "Hangup")
	assert.Less(t, strings.Index(doc, "<Gather"), strings.Index(doc, "<Redirect"))
}

func TestRenderSupportTurnOrder(t *testing.T) {
	reply := dialogue.Reply{
		Say: []dialogue.Utterance{{Text: "Keep the wound pressed", Language: session.English}},
		Gather: &dialogue.Gather{
			Input:    dialogue.InputSpeech,
			Timeout:  30,
			Next:     dialogue.EventSupport,
			Language: session.English,
			Enhanced: true,
		},
		AfterGather: []dialogue.Utterance{{Text: "Stay safe", Language: session.English}},
		Hangup:      true,
	}

	out, err := Render(reply)
	require.NoError(t, err)
	doc := string(out)

	assert.Contains(t, doc, `action="/ongoing_support"`)
	assert.Contains(t, doc, `speechTimeout="auto" language="en-US" enhanced="true"`)

	order := []string{"Keep the wound pressed", "<Gather", "Stay safe", "<Hangup></Hangup>"}
	last := -1
	for _, s := range order {
		i := strings.Index(doc, s)
		require.Greater(t, i, last, s)
		last = i
	}
}

func TestRenderEscapesText(t *testing.T) {
	out, err := Render(dialogue.Reply{
		Say: []dialogue.Utterance{{Text: "Fire at A&B <Tower>", Language: session.English}},
	})
	require.NoError(t, err)

	var decoded struct {
		Say []string `xml:"Say"`
	}
	require.NoError(t, xml.Unmarshal(out, &decoded))
	assert.Equal(t, []string{"Fire at A&B <Tower>"}, decoded.Say)
}

func TestRenderUnknownEvent(t *testing.T) {
	_, err := Render(dialogue.Reply{Redirect: "nowhere"})
	assert.Error(t, err)
}

func TestPath(t *testing.T) {
	assert.Equal(t, "/voice", Path(dialogue.EventCallStarted))
	assert.Equal(t, "/gather_information", Path(dialogue.EventInformation))
	assert.Equal(t, "/dispatch_services", Path(dialogue.EventDispatch))
	assert.Empty(t, Path("nowhere"))
}
