package cursor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/trailtail/internal/event"
)

var t0 = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

func at(sec int, action string) event.Event {
	return event.Event{Time: t0.Add(time.Duration(sec) * time.Second), Source: "iam.amazonaws.com", Action: action}
}

func TestFilterDropsBoundaryDuplicate(t *testing.T) {
	c := New(t0)
	poll1 := []event.Event{at(1, "Create"), at(2, "Delete")}
	r := c.Filter(poll1)
	require.Len(t, r.Fresh, 2)
	assert.True(t, c.Advance(poll1, t0.Add(time.Minute)))
	assert.Equal(t, t0.Add(2*time.Second), c.WindowStart())

	poll2 := []event.Event{at(2, "Delete")}
	r = c.Filter(poll2)
	assert.Empty(t, r.Fresh)
	assert.Equal(t, 1, r.Duplicates)
	assert.False(t, c.Advance(poll2, t0.Add(time.Minute)))
	assert.Equal(t, t0.Add(2*time.Second), c.WindowStart())
}

func TestFilterKeepsLateEventOnBoundary(t *testing.T) {
	c := New(t0)
	poll1 := []event.Event{at(5, "A")}
	c.Filter(poll1)
	c.Advance(poll1, t0.Add(time.Minute))

	// A different event with the same timestamp shows up late.
	poll2 := []event.Event{at(5, "A"), at(5, "B")}
	r := c.Filter(poll2)
	require.Len(t, r.Fresh, 1)
	assert.Equal(t, "B", r.Fresh[0].Action)
	assert.Equal(t, 1, r.Duplicates)
}

func TestFilterDropsStale(t *testing.T) {
	c := New(t0.Add(10 * time.Second))
	r := c.Filter([]event.Event{at(3, "Old"), at(10, "Edge"), at(11, "New")})
	assert.Equal(t, 1, r.Stale)
	require.Len(t, r.Fresh, 2)
	assert.Equal(t, "Edge", r.Fresh[0].Action)
	assert.Equal(t, "New", r.Fresh[1].Action)
}

func TestAdvanceEmptyBatchIsNoop(t *testing.T) {
	c := New(t0)
	assert.False(t, c.Advance(nil, t0.Add(time.Hour)))
	assert.False(t, c.Advance([]event.Event{}, t0.Add(time.Hour)))
	assert.Equal(t, t0, c.WindowStart())
}

func TestAdvanceNeverBackward(t *testing.T) {
	c := New(t0.Add(time.Minute))
	assert.False(t, c.Advance([]event.Event{at(1, "Old")}, t0.Add(time.Hour)))
	assert.Equal(t, t0.Add(time.Minute), c.WindowStart())
}

func TestAdvanceClampsToNow(t *testing.T) {
	c := New(t0)
	now := t0.Add(30 * time.Second)
	batch := []event.Event{at(90, "Skewed")}
	c.Filter(batch)
	assert.True(t, c.Advance(batch, now))
	assert.Equal(t, now, c.WindowStart())

	// The skewed event is still remembered and not shown again.
	r := c.Filter(batch)
	assert.Empty(t, r.Fresh)
	assert.Equal(t, 1, r.Duplicates)
}

func TestAdvancePrunesOldIdentities(t *testing.T) {
	c := New(t0)
	batch := []event.Event{at(1, "A"), at(2, "B"), at(3, "C"), at(3, "D")}
	c.Filter(batch)
	require.Equal(t, 4, c.Seen())
	c.Advance(batch, t0.Add(time.Hour))
	assert.Equal(t, 2, c.Seen())
}

func TestAdvanceUsesNewestRegardlessOfOrder(t *testing.T) {
	c := New(t0)
	c.Advance([]event.Event{at(7, "X"), at(2, "Y"), at(4, "Z")}, t0.Add(time.Hour))
	assert.Equal(t, t0.Add(7*time.Second), c.WindowStart())
}

func TestFilterUsesSourceID(t *testing.T) {
	c := New(t0)
	a := at(1, "A")
	a.ID = "evt-1"
	b := at(1, "A")
	b.ID = "evt-2"
	r := c.Filter([]event.Event{a, b})
	assert.Len(t, r.Fresh, 2)
	r = c.Filter([]event.Event{a})
	assert.Empty(t, r.Fresh)
}

func TestForgetUnconsumed(t *testing.T) {
	c := New(t0)
	batch := []event.Event{at(1, "A"), at(2, "B"), at(3, "C")}
	r := c.Filter(batch)
	require.Len(t, r.Fresh, 3)

	c.Forget(r.Fresh[1:])
	c.Advance(r.Fresh[:1], t0.Add(time.Minute))
	assert.Equal(t, t0.Add(time.Second), c.WindowStart())
	assert.Equal(t, 1, c.Seen())

	r = c.Filter(batch)
	require.Len(t, r.Fresh, 2)
	assert.Equal(t, "B", r.Fresh[0].Action)
	assert.Equal(t, 1, r.Duplicates)
}
