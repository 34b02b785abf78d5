package dialogue

import "github.com/room4-2/aasha/session"

// LocationMentionedMarker is the location value when a place was referred to but
// not named.
const LocationMentionedMarker = "mentioned in call"

// UpdateRequiredInfo records whatever facts c carries. Each rule is applied on
// its own; slots already obtained stay obtained whatever c says.
func UpdateRequiredInfo(cs *session.CallSession, c Classification) {
	info := &cs.RequiredInfo

	if c.LocationMentioned || c.LocationDetails != "" {
		value := c.LocationDetails
		if value == "" {
			value = LocationMentionedMarker
		}
		// A vague mention never replaces a location we already have a name for.
		current := info.Slot(session.SlotLocation)
		if !current.Obtained() || value != LocationMentionedMarker || current.Value() == LocationMentionedMarker {
			info.Obtain(session.SlotLocation, value)
		}
	}

	if c.EmergencyType != "" && c.EmergencyType != EmergencyUnknown {
		info.Obtain(session.SlotEmergencyType, string(c.EmergencyType))
	}

	if c.CallerCondition != "" && c.CallerCondition != CallerUnknown {
		info.Obtain(session.SlotCallerCondition, string(c.CallerCondition))
	}

	if c.PeopleCount != "" && c.PeopleCount != PeopleUnknown {
		info.Obtain(session.SlotPeopleInvolved, c.PeopleCount)
	}
}

// NextMissing returns the highest-priority slot not yet obtained, or
// session.Ready when all are.
func NextMissing(cs *session.CallSession) session.SlotName {
	for _, name := range session.SlotOrder {
		if !cs.RequiredInfo.Slot(name).Obtained() {
			return name
		}
	}
	return session.Ready
}
