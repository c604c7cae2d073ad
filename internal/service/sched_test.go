package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/forge3d/assetsync/internal/model"
	"github.com/forge3d/assetsync/internal/service"
)

func TestParseCron(t *testing.T) {
	t.Parallel()

	for _, expr := range []string{"*/5 * * * *", "0 3 * * 1-5", "@hourly", "@daily"} {
		require.NoError(t, service.ParseCron(expr), expr)
	}
	for _, expr := range []string{"", "* * * *", "61 * * * *", "@sometimes"} {
		require.Error(t, service.ParseCron(expr), expr)
	}
}

func TestParseStepDuration(t *testing.T) {
	t.Parallel()

	ok := map[string]time.Duration{
		"1d":         24 * time.Hour,
		"1d12h30m":   36*time.Hour + 30*time.Minute,
		"2h":         2 * time.Hour,
		"90s":        90 * time.Second,
		"1d12h30m5s": 36*time.Hour + 30*time.Minute + 5*time.Second,
	}
	for in, want := range ok {
		got, err := service.ParseStepDuration(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "h", "10x", "0s", "12h1d", "1.5h"} {
		_, err := service.ParseStepDuration(in)
		require.Error(t, err, in)
	}
}

func TestNewScheduler(t *testing.T) {
	t.Parallel()

	_, err := service.NewScheduler(nil, func() {})
	require.Error(t, err)

	_, err = service.NewScheduler(&model.TimerSchedule{}, func() {})
	require.Error(t, err)

	_, err = service.NewScheduler(&model.TimerSchedule{Cron: "not a cron"}, func() {})
	require.Error(t, err)

	s, err := service.NewScheduler(&model.TimerSchedule{Cron: "*/10 * * * *"}, func() {})
	require.NoError(t, err)
	require.NoError(t, s.Shutdown())

	s, err = service.NewScheduler(&model.TimerSchedule{Duration: "12h"}, func() {})
	require.NoError(t, err)
	require.NoError(t, s.Shutdown())
}
