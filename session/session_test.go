package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLanguageResolution(t *testing.T) {
	assert.Equal(t, English, English.Resolved())
	assert.Equal(t, Hindi, Hindi.Resolved())
	assert.Equal(t, Hindi, Language("").Resolved())

	assert.Equal(t, "en-US", English.Code())
	assert.Equal(t, "hi-IN", Hindi.Code())
	assert.Equal(t, "hi-IN", Language("").Code())
}

func TestSlotObtainIsSticky(t *testing.T) {
	var info RequiredInfo

	info.Obtain(SlotEmergencyType, "fire")
	info.Obtain(SlotEmergencyType, "medical")

	slot := info.Slot(SlotEmergencyType)
	assert.True(t, slot.Obtained())
	assert.Equal(t, "medical", slot.Value())
	assert.False(t, info.Slot(SlotLocation).Obtained())
}

func TestObtainUnknownSlotIgnored(t *testing.T) {
	var info RequiredInfo
	info.Obtain(Ready, "x")
	info.Obtain(SlotName("severity"), "high")

	for _, name := range SlotOrder {
		assert.False(t, info.Slot(name).Obtained())
	}
	assert.False(t, info.Slot(SlotName("severity")).Obtained())
}

func TestSnapshotCopiesState(t *testing.T) {
	cs := NewCallSession("+15550300")
	cs.Language = English
	cs.RequiredInfo.Obtain(SlotLocation, "mentioned in call")

	snap := cs.Snapshot()

	assert.Equal(t, "+15550300", snap.PhoneNumber)
	assert.Equal(t, "en-US", snap.LanguageCode)
	assert.Nil(t, snap.DispatchedAt)
	assert.Len(t, snap.RequiredInfo, 4)
	assert.True(t, snap.RequiredInfo[SlotLocation].Obtained)
	assert.Equal(t, "mentioned in call", *snap.RequiredInfo[SlotLocation].Value)
	assert.False(t, snap.RequiredInfo[SlotCallerCondition].Obtained)
	assert.Len(t, cs.ShortID(), 8)
}
