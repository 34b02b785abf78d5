package dialogue

import (
	"fmt"
	"strings"

	"github.com/room4-2/aasha/session"
)

const (
	purposeClassify = "classify"
	purposeLocation = "location"
	purposeDetails  = "details"
	purposeDispatch = "dispatch"
	purposeSafety   = "safety"
	purposeSupport  = "support"
)

// Word limits passed to the model. They are instructions, nothing truncates.
const (
	locationWordLimit = 30
	detailsWordLimit  = 30
	dispatchWordLimit = 50
	safetyWordLimit   = 40
)

const classifierInstruction = `You are AashaAI emergency classifier. Analyze the caller's input and determine:

1. Emergency type: medical, fire, police, disaster, or unknown
2. If location information is mentioned (address, landmark, area name)
3. If caller's condition is clear (are they the victim or someone else)
4. If number of people affected is mentioned

Respond in JSON format:
{
    "emergency_type": "medical|fire|police|disaster|unknown",
    "location_mentioned": true/false,
    "location_details": "any location info found or null",
    "caller_condition": "victim|witness|family|unknown",
    "people_count": "number mentioned or unknown",
    "confidence": "high|medium|low"
}

Only classify what you're confident about. If unclear, mark as unknown.`

const locationInstruction = `You are AashaAI location specialist. Your job is to get the exact emergency location.

Be direct and urgent:
- Ask for specific address, building name, landmark
- If they don't know exact address, ask for nearby landmarks, main roads
- Ask which city/area they are in
- Ask floor number if it's a building
- Be persistent but supportive

Sample questions in English:
"What is your exact location? Please give me the address."
"Which area or landmark are you near?"
"What city are you calling from?"

Sample questions in Hindi:
"आपका सटीक स्थान क्या है? कृपया पता बताएं।"
"आप किस इलाके या लैंडमार्क के पास हैं?"
"आप किस शहर से कॉल कर रहे हैं?"

Be urgent but reassuring.`

const detailsInstruction = `You are AashaAI emergency details specialist. Get specific emergency information:

For medical: "What exactly happened? Is the person conscious? Are they breathing?"
For fire: "Is anyone trapped? How big is the fire? Can you safely evacuate?"
For police: "What is happening right now? Are you in immediate danger?"
For disaster: "What type of disaster? Are you trapped? How many people are affected?"

In Hindi:
For medical: "क्या हुआ था? व्यक्ति होश में है? सांस ले रहे हैं?"
For fire: "कोई फंसा है? आग कितनी बड़ी है? सुरक्षित बाहर निकल सकते हैं?"
For police: "अभी क्या हो रहा है? आप तत्काल खतरे में हैं?"
For disaster: "किस प्रकार की आपदा? फंसे हैं? कितने लोग प्रभावित हैं?"

Ask ONE specific question. Be direct and urgent.`

const dispatchInstruction = `You are AashaAI dispatch coordinator. You have all required information.

Confirm the dispatch:
1. Summarize: emergency type, location, people involved
2. Confirm emergency services are being sent
3. Give initial safety instructions
4. Keep caller on line

English format: "I'm dispatching [service type] to [location] for [emergency type]. Stay on the line. [Safety instruction]."
Hindi format: "मैं [location] पर [emergency type] के लिए [service type] भेज रहा हूं। लाइन पर रहें। [Safety instruction]।"`

const safetyInstruction = `You are AashaAI safety instructor. Give immediate life-saving instructions while emergency services arrive.

MEDICAL: Check breathing, control bleeding, keep conscious, recovery position
FIRE: Get out safely, stay low, don't use elevator, meet outside
POLICE: Stay safe, don't confront, observe details, find secure location
DISASTER: Don't enter damaged areas, signal for help, conserve energy

Give ONE clear instruction at a time.`

// buildPrompt assembles a single-turn prompt. A zero wordLimit omits the
// length instruction.
func buildPrompt(input, instruction string, lang session.Language, situation string, wordLimit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Language: Respond in %s\n", languageName(lang))
	b.WriteString(instruction)
	b.WriteString("\n\n")
	if situation != "" {
		fmt.Fprintf(&b, "Context: %s\n", situation)
	}
	fmt.Fprintf(&b, "User Input: %s\n", input)
	if wordLimit > 0 {
		fmt.Fprintf(&b, "\nKeep response under %d words for voice calls. Be direct and urgent for emergencies.", wordLimit)
	}
	return b.String()
}

func languageName(lang session.Language) string {
	if lang.Resolved() == session.English {
		return "English (en)"
	}
	return "Hindi (hi)"
}

// phrase is a fixed utterance in both supported languages.
type phrase struct {
	en string
	hi string
}

func (p phrase) in(lang session.Language) string {
	if lang.Resolved() == session.English {
		return p.en
	}
	return p.hi
}

// languageMenu is spoken in both languages before a language is known.
const languageMenu = "आपातकालीन सेवाएं। आशा एआई। " +
	"अंग्रेजी के लिए 1 दबाएं। हिंदी के लिए 2 दबाएं। " +
	"Emergency services. AashaAI. Press 1 for English. Press 2 for Hindi."

var (
	greetingPhrase = phrase{
		en: "Emergency services. What is your emergency and where are you located?",
		hi: "आपातकालीन सेवाएं। आपकी आपातकालीन स्थिति क्या है और आप कहाँ हैं?",
	}
	speakClearlyPhrase = phrase{
		en: "Please speak clearly. I'm listening.",
		hi: "कृपया स्पष्ट रूप से बताएं। मैं सुन रहा हूँ।",
	}
	emergencyTypePhrase = phrase{
		en: "What type of emergency is this? Medical, fire, police, or other?",
		hi: "आपकी आपातकालीन स्थिति क्या है? मेडिकल, आग, पुलिस, या कोई और समस्या?",
	}
	helpOnTheWayPhrase = phrase{
		en: "Help is on the way. Any updates?",
		hi: "सेवाएं आ रही हैं। कोई अपडेट है?",
	}
	anythingElsePhrase = phrase{
		en: "I'm here. Anything else?",
		hi: "मैं यहाँ हूँ। कुछ और?",
	}
	closingPhrase = phrase{
		en: "Emergency services should arrive soon. Stay safe.",
		hi: "आपातकालीन सेवाएं पहुँचने वाली हैं। सुरक्षित रहें।",
	}
	apologyPhrase = phrase{
		en: "I'm having trouble understanding. Please repeat.",
		hi: "मुझे समझने में समस्या हो रही है। कृपया दोबारा बताएं।",
	}
)

// Apology returns the utterance substituted for a failed model response.
func Apology(lang session.Language) string {
	return apologyPhrase.in(lang)
}
