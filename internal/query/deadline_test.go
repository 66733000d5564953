package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/evtrace/internal/testutil"
)

func TestDeadline_Lifecycle(t *testing.T) {
	clk := testutil.NewFakeClock()
	d := NewDeadline(3*time.Second, clk)

	assert.False(t, d.Started())
	assert.Equal(t, 3*time.Second, d.Remaining(), "full budget before start")
	assert.True(t, d.At().IsZero())
	assert.False(t, d.Expired())

	clk.Step(time.Minute)
	assert.Equal(t, testutil.Epoch.Add(time.Minute), d.Start())

	clk.Step(time.Second)
	assert.Equal(t, 2*time.Second, d.Remaining())
	assert.Equal(t, testutil.Epoch.Add(time.Minute+3*time.Second), d.At())

	assert.Equal(t, testutil.Epoch.Add(time.Minute), d.Start(), "start is idempotent")

	clk.Step(5 * time.Second)
	assert.Equal(t, time.Duration(0), d.Remaining(), "never negative")
	assert.True(t, d.Expired())
	assert.Equal(t, 3*time.Second, d.Initial())
}

func TestDeadline_NonPositiveTimeout(t *testing.T) {
	d := NewDeadline(-time.Second, nil)
	assert.Equal(t, time.Duration(0), d.Initial())

	d.Start()
	assert.True(t, d.Expired())
	assert.Equal(t, time.Duration(0), NoWait().Remaining())
}
