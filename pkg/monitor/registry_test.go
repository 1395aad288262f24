package monitor

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func fixedClock() func() time.Time {
	t := time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)
	return func() time.Time { return t }
}

func TestStartConditionalListsMonitor(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewRegistry(WithClock(fixedClock()))
	defer r.Close()

	rec, err := r.StartConditional("P", "stop when pressure<1e-9")
	require.NoError(t, err)

	assert.Equal(t, "conditional_P_092653", rec.ID)
	assert.Contains(t, rec.ID, "conditional")
	assert.Contains(t, rec.ID, "P")
	assert.Equal(t, StatusActive, rec.Status)

	active := r.Active()
	require.Len(t, active, 1)
	assert.Equal(t, rec.ID, active[0].ID)
	assert.Equal(t, "stop when pressure<1e-9", active[0].Condition)
}

func TestIDsCreatedInSameSecondAreUnique(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewRegistry(WithClock(fixedClock()))
	defer r.Close()

	a, err := r.StartDevice("pump", "pressure", time.Hour)
	require.NoError(t, err)
	b, err := r.StartDevice("pump", "pressure", time.Hour)
	require.NoError(t, err)
	c, err := r.StartDevice("pump", "pressure", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, "device_pump_092653", a.ID)
	assert.Equal(t, "device_pump_092653_2", b.ID)
	assert.Equal(t, "device_pump_092653_3", c.ID)
	assert.Equal(t, 3, r.Len())
}

func TestDeviceIntervalDefault(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewRegistry(WithDeviceInterval(250 * time.Millisecond))
	defer r.Close()

	rec, err := r.StartDevice("thermo", "T", 0)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, rec.Interval)
}

func TestStopHaltsLoop(t *testing.T) {
	defer goleak.VerifyNone(t)

	var ticks atomic.Int32
	r := NewRegistry(
		WithConditionPoll(time.Millisecond),
		WithProbe(func(ctx context.Context, rec Record) error {
			ticks.Add(1)
			return nil
		}),
	)
	defer r.Close()

	rec, err := r.StartConditional("P", "when done")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, time.Millisecond)

	stopped, ok := r.Stop(rec.ID)
	require.True(t, ok)
	assert.Equal(t, StatusStopped, stopped.Status)
	assert.Zero(t, r.Len())

	after := ticks.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, ticks.Load(), "probe ran after Stop returned")

	_, ok = r.Stop(rec.ID)
	assert.False(t, ok)
}

func TestStopAllReportsEveryID(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewRegistry()
	defer r.Close()

	a, err := r.StartConditional("P", "until pressure below 1e-9")
	require.NoError(t, err)
	b, err := r.StartDevice("gauge", "pressure", time.Second)
	require.NoError(t, err)

	ids := r.StopAll()
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)
	assert.Empty(t, r.Active())
}

func TestProbeErrorMarksRecord(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewRegistry(
		WithConditionPoll(time.Millisecond),
		WithProbe(func(ctx context.Context, rec Record) error {
			return errors.New("gauge offline")
		}),
	)
	defer r.Close()

	rec, err := r.StartConditional("P", "when ready")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, ok := r.Get(rec.ID)
		return ok && got.Status == StatusError
	}, time.Second, time.Millisecond)

	active := r.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "gauge offline", active[0].Err)
}

func TestProbePanicMarksRecord(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewRegistry(
		WithConditionPoll(time.Millisecond),
		WithProbe(func(ctx context.Context, rec Record) error {
			panic("boom")
		}),
	)
	defer r.Close()

	rec, err := r.StartDevice("pump", "rpm", time.Millisecond)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, ok := r.Get(rec.ID)
		return ok && got.Status == StatusError
	}, time.Second, time.Millisecond)

	got, _ := r.Get(rec.ID)
	assert.True(t, strings.Contains(got.Err, "boom"))
}

func TestActiveSortedByCreation(t *testing.T) {
	defer goleak.VerifyNone(t)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.Local)
	var n atomic.Int64
	r := NewRegistry(WithClock(func() time.Time {
		return base.Add(time.Duration(n.Add(1)) * time.Second)
	}))
	defer r.Close()

	first, _ := r.StartDevice("b", "x", time.Hour)
	second, _ := r.StartDevice("a", "x", time.Hour)
	third, _ := r.StartConditional("c", "if x")

	active := r.Active()
	require.Len(t, active, 3)
	assert.Equal(t, []string{first.ID, second.ID, third.ID}, []string{active[0].ID, active[1].ID, active[2].ID})
}

func TestClosedRegistryRejectsNewMonitors(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := NewRegistry()
	_, err := r.StartDevice("pump", "rpm", time.Hour)
	require.NoError(t, err)

	r.Close()
	assert.Zero(t, r.Len())

	_, err = r.StartConditional("P", "when")
	assert.ErrorIs(t, err, ErrClosed)
}
