package service

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	gocron "github.com/go-co-op/gocron/v2"
	"github.com/robfig/cron/v3"

	"github.com/forge3d/assetsync/internal/model"
)

// ParseCron validates a 5-field cron expression or an @macro.
func ParseCron(expr string) error {
	e := strings.TrimSpace(expr)
	if e == "" {
		return fmt.Errorf("empty cron expression")
	}

	if strings.HasPrefix(e, "@") {
		_, err := cron.ParseStandard(e)
		return err
	}

	parser5 := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	_, err := parser5.Parse(e)
	return err
}

var stepDurationRx = regexp.MustCompile(`^(\d+d)?(\d+h)?(\d+m)?(\d+s)?$`)

// ParseStepDuration parses ordered day/hour/minute/second segments like
// "1d12h30m" into a time.Duration. Empty string is rejected.
func ParseStepDuration(s string) (time.Duration, error) {
	e := strings.TrimSpace(s)
	if e == "" {
		return 0, errors.New("empty duration")
	}
	m := stepDurationRx.FindStringSubmatch(e)
	if m == nil {
		return 0, fmt.Errorf("invalid duration %q, want segments like 1d12h30m10s", s)
	}

	var total time.Duration
	units := []time.Duration{24 * time.Hour, time.Hour, time.Minute, time.Second}
	for i, seg := range m[1:] {
		if seg == "" {
			continue
		}
		n, err := strconv.Atoi(seg[:len(seg)-1])
		if err != nil {
			return 0, fmt.Errorf("invalid duration segment %q: %w", seg, err)
		}
		total += time.Duration(n) * units[i]
	}
	if total == 0 {
		return 0, fmt.Errorf("duration %q is zero", s)
	}
	return total, nil
}

// NewScheduler builds a gocron scheduler triggering startFunc per the
// timer schedule, either cron or step-duration based.
func NewScheduler(cfgp *model.TimerSchedule, startFunc func()) (gocron.Scheduler, error) {
	if cfgp == nil {
		return nil, errors.New("service.schedule is required in timer mode")
	}
	cfg := *cfgp

	var job gocron.JobDefinition
	switch {
	case cfg.Cron != "":
		if err := ParseCron(cfg.Cron); err != nil {
			return nil, fmt.Errorf("parsing service.schedule.cron: %w", err)
		}
		job = gocron.CronJob(cfg.Cron, false)
	case cfg.Duration != "":
		d, err := ParseStepDuration(cfg.Duration)
		if err != nil {
			return nil, fmt.Errorf("parsing service.schedule.duration: %w", err)
		}
		job = gocron.DurationJob(d)
	default:
		return nil, errors.New("both schedule.cron and schedule.duration are empty")
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("initializing scheduler: %w", err)
	}
	if _, err := s.NewJob(job, gocron.NewTask(startFunc)); err != nil {
		return nil, fmt.Errorf("initializing scheduler job: %w", err)
	}
	return s, nil
}
