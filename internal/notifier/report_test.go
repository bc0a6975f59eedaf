package notifier_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seatwatch/internal/models"
	"seatwatch/internal/notifier"
)

func sampleGroup(label string, enrolled, capacity int) models.Group {
	return models.Group{
		Subject:     "Język hiszpański",
		SubjectCode: "4020-ES",
		Label:       label,
		Instructor:  "mgr Nowak",
		Day:         time.Monday,
		Start:       600,
		End:         690,
		Enrolled:    enrolled,
		Capacity:    capacity,
	}
}

func TestBuildMessages_EmptyChanges(t *testing.T) {
	t.Parallel()

	assert.Empty(t, notifier.BuildMessages(&models.Changes{}))
}

func TestBuildMessages_Categories(t *testing.T) {
	t.Parallel()

	changes := &models.Changes{
		NewlyAvailable: []models.Group{sampleGroup("1", 8, 12)},
		NewlyFull:      []models.Group{sampleGroup("2", 12, 12)},
		SpotsChanged:   []models.SeatChange{{Group: sampleGroup("3", 11, 12), PrevFree: 3}},
	}

	messages := notifier.BuildMessages(changes)
	require.Len(t, messages, 3)

	available := messages[0]
	assert.Contains(t, available.Title, "Nowe wolne miejsca")
	require.Len(t, available.Fields, 1)
	assert.Contains(t, available.Fields[0].Name, "Język hiszpański")
	assert.Contains(t, available.Fields[0].Value, "poniedziałek 10:00-11:30")
	assert.Contains(t, available.Fields[0].Value, "**4** wolnych (8/12)")

	full := messages[1]
	assert.Contains(t, full.Title, "Zapełnione (1)")
	assert.Contains(t, full.Description, "Język hiszpański gr.2")
	assert.Empty(t, full.Fields)

	changed := messages[2]
	assert.Contains(t, changed.Title, "Zmiana miejsc (1)")
	require.Len(t, changed.Fields, 1)
	assert.Contains(t, changed.Fields[0].Value, "3 → **1** wolnych")
}

func TestBuildMessages_FieldCap(t *testing.T) {
	t.Parallel()

	var groups []models.Group
	for i := 0; i < 30; i++ {
		g := sampleGroup(fmt.Sprintf("%02d", i), 8, 12)
		groups = append(groups, g)
	}

	messages := notifier.BuildMessages(&models.Changes{NewlyAvailable: groups})
	require.Len(t, messages, 1)

	// Overflow entries are silently dropped; the title still reports the
	// full count.
	assert.Len(t, messages[0].Fields, notifier.MaxFields)
	assert.Contains(t, messages[0].Title, "(30 grup)")
}

func TestBuildMessages_NewlyFullNameLimit(t *testing.T) {
	t.Parallel()

	var groups []models.Group
	for i := 0; i < 15; i++ {
		groups = append(groups, sampleGroup(fmt.Sprintf("%02d", i), 12, 12))
	}

	messages := notifier.BuildMessages(&models.Changes{NewlyFull: groups})
	require.Len(t, messages, 1)

	assert.Contains(t, messages[0].Title, "(15)")
	// Only the first ten names are listed.
	assert.Contains(t, messages[0].Description, "gr.09")
	assert.NotContains(t, messages[0].Description, "gr.10")
}

func TestBuildMessages_StableOrdering(t *testing.T) {
	t.Parallel()

	a := sampleGroup("1", 8, 12)
	b := sampleGroup("2", 8, 12)

	forward := notifier.BuildMessages(&models.Changes{NewlyAvailable: []models.Group{a, b}})
	backward := notifier.BuildMessages(&models.Changes{NewlyAvailable: []models.Group{b, a}})

	require.Len(t, forward, 1)
	require.Len(t, backward, 1)
	assert.Equal(t, forward[0].Fields, backward[0].Fields)
}

// A group meeting several times a week yields entries sharing subject and
// label; the meeting time must break the tie so the order stays fixed.
func TestBuildMessages_StableOrderingForRepeatedMeetings(t *testing.T) {
	t.Parallel()

	monday := sampleGroup("1", 8, 12)
	wednesday := monday
	wednesday.Day = time.Wednesday
	wednesday.Start = 480
	wednesday.End = 570

	forward := notifier.BuildMessages(&models.Changes{NewlyAvailable: []models.Group{monday, wednesday}})
	backward := notifier.BuildMessages(&models.Changes{NewlyAvailable: []models.Group{wednesday, monday}})

	require.Len(t, forward, 1)
	require.Len(t, backward, 1)
	require.Len(t, forward[0].Fields, 2)
	assert.Contains(t, forward[0].Fields[0].Value, "poniedziałek")
	assert.Contains(t, forward[0].Fields[1].Value, "środa")
	assert.Equal(t, forward[0].Fields, backward[0].Fields)

	spots := []models.SeatChange{
		{Group: wednesday, PrevFree: 6},
		{Group: monday, PrevFree: 6},
	}
	changed := notifier.BuildMessages(&models.Changes{SpotsChanged: spots})
	require.Len(t, changed, 1)
	require.Len(t, changed[0].Fields, 2)
	assert.Contains(t, changed[0].Fields[0].Value, "poniedziałek")
}

func TestBuildFailureMessage(t *testing.T) {
	t.Parallel()

	msg := notifier.BuildFailureMessage(errors.New("CAS rejected the credentials for user student"))

	assert.Contains(t, msg.Title, "Błąd")
	assert.Contains(t, msg.Description, "CAS rejected the credentials for user student")
	assert.Equal(t, 0xFF0000, msg.Color)
	assert.Empty(t, msg.Fields)
}
