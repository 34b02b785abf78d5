// Package twiml renders dialogue replies as Twilio voice markup.
package twiml

import (
	"encoding/xml"
	"fmt"

	"github.com/room4-2/aasha/dialogue"
)

// ContentType is the media type webhook responses are served with.
const ContentType = "text/xml"

// Webhook paths, one per event kind.
var paths = map[dialogue.EventKind]string{
	dialogue.EventCallStarted:    "/voice",
	dialogue.EventLanguageChosen: "/set_lang",
	dialogue.EventInformation:    "/gather_information",
	dialogue.EventDispatch:       "/dispatch_services",
	dialogue.EventSupport:        "/ongoing_support",
}

// Path returns the webhook path that receives events of kind.
func Path(kind dialogue.EventKind) string {
	return paths[kind]
}

type response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []interface{}
}

type say struct {
	XMLName  xml.Name `xml:"Say"`
	Language string   `xml:"language,attr,omitempty"`
	Text     string   `xml:",chardata"`
}

type gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr"`
	NumDigits     int      `xml:"numDigits,attr,omitempty"`
	Action        string   `xml:"action,attr"`
	Method        string   `xml:"method,attr"`
	Timeout       int      `xml:"timeout,attr"`
	SpeechTimeout string   `xml:"speechTimeout,attr,omitempty"`
	Language      string   `xml:"language,attr,omitempty"`
	Enhanced      string   `xml:"enhanced,attr,omitempty"`
	Say           *say
}

type redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr"`
	URL     string   `xml:",chardata"`
}

type hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// Render converts a reply into a complete TwiML document.
func Render(reply dialogue.Reply) ([]byte, error) {
	doc := response{}

	for _, u := range reply.Say {
		doc.Verbs = append(doc.Verbs, sayVerb(u))
	}

	if g := reply.Gather; g != nil {
		action := Path(g.Next)
		if action == "" {
			return nil, fmt.Errorf("gather: no webhook for event %q", g.Next)
		}
		verb := gather{
			Input:     string(g.Input),
			NumDigits: g.NumDigits,
			Action:    action,
			Method:    "POST",
			Timeout:   g.Timeout,
		}
		if g.Input == dialogue.InputSpeech {
			verb.SpeechTimeout = "auto"
		}
		if g.Language != "" {
			verb.Language = g.Language.Code()
		}
		if g.Enhanced {
			verb.Enhanced = "true"
		}
		if g.Prompt != nil {
			s := sayVerb(*g.Prompt)
			verb.Say = &s
		}
		doc.Verbs = append(doc.Verbs, verb)
	}

	for _, u := range reply.AfterGather {
		doc.Verbs = append(doc.Verbs, sayVerb(u))
	}

	if reply.Redirect != "" {
		target := Path(reply.Redirect)
		if target == "" {
			return nil, fmt.Errorf("redirect: no webhook for event %q", reply.Redirect)
		}
		doc.Verbs = append(doc.Verbs, redirect{Method: "POST", URL: target})
	}

	if reply.Hangup {
		doc.Verbs = append(doc.Verbs, hangup{})
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode TwiML: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}

func sayVerb(u dialogue.Utterance) say {
	return say{Language: u.Language.Code(), Text: u.Text}
}
