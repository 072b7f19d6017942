// Package logging builds the process logger for a light-curve run.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/grafana/loki-client-go/loki"
	"github.com/prometheus/common/model"
	"github.com/rs/zerolog"

	"github.com/timzifer/superbol/config"
)

// Run identifies the reduction a logger serves. Non-empty fields are attached
// to every record and become Loki stream labels.
type Run struct {
	Name     string
	Object   string
	Strategy string
}

type field struct {
	key, value string
}

func (r Run) fields() []field {
	var out []field
	for _, f := range []field{{"run", r.Name}, {"object", r.Object}, {"strategy", r.Strategy}} {
		if f.value = strings.TrimSpace(f.value); f.value != "" {
			out = append(out, f)
		}
	}
	return out
}

// Setup creates a zerolog logger according to the provided configuration.
// Records go to stderr; stdout carries the light-curve table.
func Setup(cfg config.LoggingConfig, run Run) (zerolog.Logger, func(), error) {
	return setup(cfg, run, os.Stderr)
}

func setup(cfg config.LoggingConfig, run Run, out io.Writer) (zerolog.Logger, func(), error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return zerolog.Logger{}, nil, fmt.Errorf("parse log level: %w", err)
		}
		level = parsed
	}

	var console io.Writer
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		console = out
	case "text":
		console = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	default:
		return zerolog.Logger{}, nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	writers := []io.Writer{console}
	cleanup := func() {}

	if cfg.Loki.Enabled {
		lokiWriter, closer, err := newLokiWriter(cfg.Loki, run)
		if err != nil {
			return zerolog.Logger{}, nil, err
		}
		writers = append(writers, lokiWriter)
		cleanup = closer
	}

	ctx := zerolog.New(zerolog.MultiLevelWriter(writers...)).With().Timestamp()
	for _, f := range run.fields() {
		ctx = ctx.Str(f.key, f.value)
	}
	return ctx.Logger().Level(level), cleanup, nil
}

// StreamLabels returns the Loki stream labels for run. Configured labels win
// over the derived app, run, object and strategy labels.
func StreamLabels(cfg config.LokiConfig, run Run) (model.LabelSet, error) {
	labels := model.LabelSet{"app": "superbol"}
	for _, f := range run.fields() {
		labels[model.LabelName(f.key)] = model.LabelValue(f.value)
	}
	for k, v := range cfg.Labels {
		labels[model.LabelName(k)] = model.LabelValue(v)
	}
	if err := labels.Validate(); err != nil {
		return nil, fmt.Errorf("loki labels: %w", err)
	}
	return labels, nil
}

func newLokiWriter(cfg config.LokiConfig, run Run) (io.Writer, func(), error) {
	if cfg.URL == "" {
		return nil, nil, fmt.Errorf("loki url is required")
	}
	labels, err := StreamLabels(cfg, run)
	if err != nil {
		return nil, nil, err
	}
	lokiCfg, err := loki.NewDefaultConfig(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("prepare loki config: %w", err)
	}
	client, err := loki.New(lokiCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create loki client: %w", err)
	}
	return &lokiWriter{client: client, labels: labels}, client.Stop, nil
}

type lokiWriter struct {
	client *loki.Client
	labels model.LabelSet
}

func (l *lokiWriter) Write(p []byte) (int, error) {
	entry := strings.TrimSpace(string(p))
	if entry == "" {
		return len(p), nil
	}
	err := l.client.Handle(l.labels, time.Now(), entry)
	return len(p), err
}
