package event

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/evtrace/internal/value"
)

func rec(seq int64, source, attr string, v any) Record {
	return Record{Seq: seq, SourceID: source, AttributeID: attr, Value: value.MustOf(v)}
}

func TestHistory_Previous(t *testing.T) {
	h := History{
		rec(1, "d1", "state", "OFF"),
		rec(2, "d2", "state", "ON"),
		rec(3, "d1", "obsState", "IDLE"),
		rec(4, "d1", "State", "ON"),
		rec(5, "d1", "state", "FAULT"),
	}

	prev, ok := h.Previous(h[3])
	assert.True(t, ok)
	assert.Equal(t, int64(1), prev.Seq, "skips other sources and attributes")

	prev, ok = h.Previous(h[4])
	assert.True(t, ok)
	assert.Equal(t, int64(4), prev.Seq, "most recent prior record wins")

	_, ok = h.Previous(h[0])
	assert.False(t, ok, "first record of a stream has no previous")

	_, ok = h.Previous(rec(99, "d1", "state", "ON"))
	assert.False(t, ok, "records outside the history have no previous")
}

func TestHistory_First(t *testing.T) {
	h := History{
		rec(1, "d1", "state", "OFF"),
		rec(2, "d2", "state", "ON"),
		rec(3, "d1", "state", "ON"),
	}

	assert.True(t, h.First(h[0]))
	assert.True(t, h.First(h[1]))
	assert.False(t, h.First(h[2]))
	assert.False(t, h.First(rec(10, "d3", "state", "ON")))
}

func TestHistory_FilterAndLast(t *testing.T) {
	h := History{
		rec(1, "d1", "state", "OFF"),
		rec(2, "d2", "state", "ON"),
		rec(3, "d1", "state", "ON"),
	}

	d1 := h.Filter(func(r Record) bool { return r.HasSource("d1") })
	assert.Len(t, d1, 2)

	last, ok := d1.Last()
	assert.True(t, ok)
	assert.Equal(t, int64(3), last.Seq)

	_, ok = History{}.Last()
	assert.False(t, ok)
}
