package model

import (
	"fmt"
	"io"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

const (
	ServiceModeManual = "manual"
	ServiceModeTimer  = "timer"
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
}

// Config is the top level assetsync configuration.
type Config struct {
	Version int          `json:"version"` // fixed 0 for now
	Worker  Worker       `json:"worker"`
	Catalog CatalogFiles `json:"catalog"`
	Service Service      `json:"service"`
}

// Worker describes how to launch the headless host instance and the
// protocol timing knobs. Durations are Go duration strings; empty means
// the built-in default.
type Worker struct {
	Binary string `json:"binary"` // host application binary
	Script string `json:"script"` // worker entry point script

	HandshakeTimeout string `json:"handshake_timeout,omitempty"`
	IdleTimeout      string `json:"idle_timeout,omitempty"`
	PollInterval     string `json:"poll_interval,omitempty"`
	ShutdownGrace    string `json:"shutdown_grace,omitempty"`
	MaxRetries       int    `json:"max_retries,omitempty"`
}

// CatalogFiles are the two launch-time arguments handed to the worker.
type CatalogFiles struct {
	File       string `json:"file"`
	Categories string `json:"categories"`
}

// Service selects between one-shot manual batches and timer driven ones.
type Service struct {
	Mode     string         `json:"mode"`
	Verbose  *bool          `json:"verbose,omitempty"`
	Schedule *TimerSchedule `json:"schedule,omitempty"`
	Metrics  *Metrics       `json:"metrics,omitempty"`
}

// TimerSchedule configures timer mode, either a 5-field cron expression or
// a day/hour/minute/second duration like "1d12h".
type TimerSchedule struct {
	Cron     string `json:"cron,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// Metrics enables the Prometheus endpoint in timer mode.
type Metrics struct {
	Enabled *bool  `json:"enabled,omitempty"`
	Listen  string `json:"listen,omitempty"` // e.g. ":9464"
}

// LoadConfig validates YAML from r against the embedded CUE schema and
// decodes it. Validation failures can be expanded via CueErrDetails.
func LoadConfig(r io.Reader) (Config, error) {
	yamlFile, err := yaml.Extract("config.yaml", r)
	if err != nil {
		return Config{}, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(cue.All(), cue.Concrete(true)); err != nil {
		return Config{}, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return Config{}, err
	}

	if err := out.Worker.checkDurations(); err != nil {
		return Config{}, err
	}
	return out, nil
}

func (w Worker) checkDurations() error {
	for name, v := range map[string]string{
		"worker.handshake_timeout": w.HandshakeTimeout,
		"worker.idle_timeout":      w.IdleTimeout,
		"worker.poll_interval":     w.PollInterval,
		"worker.shutdown_grace":    w.ShutdownGrace,
	} {
		if v == "" {
			continue
		}
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("parsing %s: %w", name, err)
		}
	}
	return nil
}

// Duration parses s, falling back to def when s is empty. LoadConfig already
// rejected unparseable values.
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

// Verbose returns the effective verbosity.
func (s Service) VerboseEnabled() bool {
	return s.Verbose != nil && *s.Verbose
}

// MetricsEnabled reports whether the Prometheus endpoint should start.
func (s Service) MetricsEnabled() bool {
	return s.Metrics != nil && s.Metrics.Enabled != nil && *s.Metrics.Enabled
}
