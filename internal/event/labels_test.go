package event

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/evtrace/internal/value"
)

func TestLabels_Label(t *testing.T) {
	l := NewLabels(map[string]map[int64]string{
		"obsState": Enum("EMPTY", "RESOURCING", "IDLE"),
	})

	label, ok := l.Label("OBSSTATE", value.Int(2))
	assert.True(t, ok)
	assert.Equal(t, "IDLE", label)

	label, ok = l.Label("obsstate", value.Float(1))
	assert.True(t, ok, "integral floats are labelled")
	assert.Equal(t, "RESOURCING", label)

	_, ok = l.Label("obsState", value.Int(9))
	assert.False(t, ok)

	_, ok = l.Label("obsState", value.String("IDLE"))
	assert.False(t, ok)

	_, ok = l.Label("other", value.Int(0))
	assert.False(t, ok)
}

func TestLabels_ZeroValue(t *testing.T) {
	var l Labels
	_, ok := l.Label("state", value.Int(0))
	assert.False(t, ok)
	assert.Equal(t, "0", l.Format("state", value.Int(0)))
	assert.Equal(t, "null", l.Format("state", nil))
	assert.False(t, l.Has("state"))
}

func TestLabels_Immutable(t *testing.T) {
	table := map[string]map[int64]string{"mode": {0: "AUTO"}}
	l := NewLabels(table)

	table["mode"][0] = "MANUAL"
	table["other"] = map[int64]string{0: "X"}

	label, _ := l.Label("mode", value.Int(0))
	assert.Equal(t, "AUTO", label)
	assert.False(t, l.Has("other"))
}

func TestLabels_With(t *testing.T) {
	base := DefaultLabels()
	extended := base.With(map[string]map[int64]string{
		"State": {14: "CUSTOM"},
		"mode":  Enum("AUTO", "MANUAL"),
	})

	label, _ := extended.Label("state", value.Int(14))
	assert.Equal(t, "CUSTOM", label)
	label, _ = extended.Label("state", value.Int(0))
	assert.Equal(t, "ON", label, "merged over existing ordinals")
	assert.True(t, extended.Has("mode"))

	_, ok := base.Label("state", value.Int(14))
	assert.False(t, ok, "base table untouched")
	assert.False(t, base.Has("mode"))
}

func TestLabels_Resolve(t *testing.T) {
	l := DefaultLabels()

	v, ok := l.Resolve("State", "FAULT")
	assert.True(t, ok)
	assert.Equal(t, value.Int(8), v)

	_, ok = l.Resolve("state", "NOPE")
	assert.False(t, ok)

	_, ok = l.Resolve("voltage", "ON")
	assert.False(t, ok)
}
