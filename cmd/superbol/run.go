package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/timzifer/superbol/config"
	"github.com/timzifer/superbol/ingest"
	"github.com/timzifer/superbol/internal/logging"
	"github.com/timzifer/superbol/internal/reload"
	"github.com/timzifer/superbol/lightcurve"
	"github.com/timzifer/superbol/photometry"
	"github.com/timzifer/superbol/store"
)

type runCmd struct {
	Config        string        `help:"Configuration file (YAML) or CUE package." type:"path" default:"superbol.yaml"`
	Photometry    string        `help:"Photometry file, OSC JSON or a plain JSON list." type:"existingfile" required:""`
	Object        string        `help:"Object name inside an OSC document. Plain lists are read when empty."`
	Strategy      string        `help:"Override the configured strategy."`
	Out           string        `help:"Write the table to this file instead of stdout." type:"path"`
	DB            string        `help:"Persist the light curve to this SQLite database." type:"path"`
	Watch         bool          `help:"Recompute whenever the configuration, tables or photometry change."`
	Interval      time.Duration `help:"Polling interval for --watch." default:"1s"`
	MetricsListen string        `help:"Serve Prometheus metrics on this address."`
}

func (r *runCmd) Run(ctx context.Context) error {
	cfg, err := r.load()
	if err != nil {
		return err
	}
	logger, cleanup, err := logging.Setup(cfg.Logging, logging.Run{
		Name:     cfg.Name,
		Object:   objectName(r.Object, cfg.Name, r.Photometry),
		Strategy: cfg.Strategy.Name,
	})
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer cleanup()
	log.Logger = logger

	if r.MetricsListen != "" {
		if err := serveMetrics(ctx, r.MetricsListen, logger); err != nil {
			return err
		}
	}
	if !r.Watch {
		return r.once(ctx, cfg, logger)
	}
	return r.watch(ctx, cfg, logger)
}

func (r *runCmd) load() (*config.Config, error) {
	cfg, err := config.Load(r.Config)
	if err != nil {
		return nil, err
	}
	if r.Strategy != "" {
		cfg.Strategy.Name = r.Strategy
	}
	return cfg, nil
}

func (r *runCmd) once(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	opts, err := lightcurve.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	calc, err := lightcurve.NewCalculator(append(opts, lightcurve.WithLogger(logger))...)
	if err != nil {
		return err
	}
	bands, err := lightcurve.BandsFromConfig(cfg)
	if err != nil {
		return err
	}
	set, err := readPhotometry(r.Photometry, r.Object, bands)
	if err != nil {
		return err
	}
	lc, err := calc.CalculateLightcurve(ctx, set)
	if err != nil {
		return err
	}

	if err := r.write(lc, cfg.Decimals()); err != nil {
		return err
	}
	if r.DB == "" {
		return nil
	}
	st, err := store.Open(ctx, r.DB, logger)
	if err != nil {
		return err
	}
	defer st.Close()
	_, err = st.SaveLightcurve(ctx, objectName(r.Object, cfg.Name, r.Photometry), lc)
	return err
}

func (r *runCmd) write(lc lightcurve.Lightcurve, decimals int) error {
	var w io.Writer = os.Stdout
	if r.Out != "" {
		f, err := os.Create(r.Out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	return lightcurve.WriteText(w, lc, decimals)
}

func (r *runCmd) watch(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	watcher, err := reload.NewWatcher(r.Photometry, cfg)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := r.once(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("light curve failed")
	}

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			changes, err := watcher.Check()
			if err != nil {
				logger.Error().Err(err).Msg("failed to check for changes")
				continue
			}
			if len(changes) == 0 {
				continue
			}
			for _, ch := range changes {
				if ch.Role == reload.RolePhotometry && ch.Removed {
					return fmt.Errorf("photometry %s removed", ch.Path)
				}
			}
			logger.Info().Strs("files", changes.Paths()).Bool("reload", changes.NeedsReload()).Msg("inputs changed, recomputing")
			if changes.NeedsReload() {
				newCfg, err := r.load()
				if err != nil {
					logger.Error().Err(err).Msg("failed to reload configuration")
					continue
				}
				cfg = newCfg
			}
			if err := watcher.Update(cfg); err != nil {
				logger.Error().Err(err).Msg("failed to update watcher state")
			}
			if err := r.once(ctx, cfg, logger); err != nil {
				logger.Error().Err(err).Msg("light curve failed")
			}
		}
	}
}

func serveMetrics(ctx context.Context, listen string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return fmt.Errorf("listen metrics: %w", err)
	}
	srv := &http.Server{Handler: mux}
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	logger.Info().Str("listen", ln.Addr().String()).Msg("metrics server started")
	return nil
}

func readPhotometry(path, object string, bands *photometry.BandTable) (*photometry.Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open photometry: %w", err)
	}
	defer f.Close()
	if object != "" {
		return ingest.ReadOSC(f, object, bands)
	}
	return ingest.ReadJSON(f, bands)
}

func objectName(object, name, path string) string {
	switch {
	case object != "":
		return object
	case name != "":
		return name
	default:
		return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
}
