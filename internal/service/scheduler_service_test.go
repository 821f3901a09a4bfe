package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDailySpec(t *testing.T) {
	spec, err := buildDailySpec("03:07")
	require.NoError(t, err)
	assert.Equal(t, "0 7 3 * * *", spec)

	for _, bad := range []string{"", "3", "24:00", "12:60", "ab:cd", "1:2:3"} {
		_, err := buildDailySpec(bad)
		assert.Error(t, err, bad)
	}
}

func TestSchedulerService_Register(t *testing.T) {
	s := NewSchedulerService(time.UTC, nil)

	_, err := s.ScheduleDaily("09:30", func() {})
	require.NoError(t, err)
	_, err = s.ScheduleInterval(2*time.Hour, func() {})
	require.NoError(t, err)
	_, err = s.ScheduleInterval(0, func() {})
	assert.Error(t, err)
	_, err = s.ScheduleDaily("late", func() {})
	assert.Error(t, err)

	assert.Equal(t, 2, s.Entries())
}

func TestSchedulerService_RunsJobs(t *testing.T) {
	s := NewSchedulerService(time.UTC, nil)
	ran := make(chan struct{}, 1)
	_, err := s.ScheduleInterval(time.Second, func() {
		select {
		case ran <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)

	s.Start()
	defer s.Stop()
	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not run")
	}
}
