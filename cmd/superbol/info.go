package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"

	"github.com/timzifer/superbol/bolcorr"
	"github.com/timzifer/superbol/config"
	"github.com/timzifer/superbol/lightcurve"
	"github.com/timzifer/superbol/store"
)

type checkCmd struct {
	Config string `arg:"" help:"Configuration file (YAML) or CUE package." type:"path"`
}

func (c *checkCmd) Run() error {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return err
	}
	opts, err := lightcurve.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}
	calc, err := lightcurve.NewCalculator(opts...)
	if err != nil {
		return err
	}
	fmt.Printf("Strategy: %s\n", calc.Strategy())
	fmt.Println("Configuration check completed successfully.")
	return nil
}

type showCmd struct {
	DB       string `help:"SQLite database." type:"existingfile" required:""`
	Object   string `arg:"" help:"Object name."`
	Decimals int    `help:"Decimal places." default:"4"`
}

func (s *showCmd) Run(ctx context.Context) error {
	st, err := store.Open(ctx, s.DB, zerolog.Nop())
	if err != nil {
		return err
	}
	defer st.Close()
	lc, err := st.LoadLightcurve(ctx, s.Object)
	if err != nil {
		return err
	}
	return lightcurve.WriteText(os.Stdout, lc, s.Decimals)
}

type bandsCmd struct {
	Config string `help:"Configuration whose band table to list." type:"path"`
}

func (b *bandsCmd) Run() error {
	var cfg *config.Config
	if b.Config != "" {
		loaded, err := config.Load(b.Config)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	table, err := lightcurve.BandsFromConfig(cfg)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tALT NAME\tWAVELENGTH (A)\tZERO POINT")
	for _, name := range table.Names() {
		band, err := table.Lookup(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%.1f\t%.4g\n", band.Name, band.AltName, band.EffectiveWavelength, band.FluxConversionFactor)
	}
	return w.Flush()
}

type methodsCmd struct{}

func (methodsCmd) Run() error {
	engine := bolcorr.DefaultEngine()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "METHOD\tCOLOUR\tRANGE\tRMS")
	for _, name := range engine.Names() {
		method, err := engine.Method(name)
		if err != nil {
			return err
		}
		for _, color := range method.Colors() {
			b1, b2, _ := strings.Cut(color, "-")
			lo, hi, err := method.Range(b1, b2)
			if err != nil {
				return err
			}
			rms, err := method.RMS(b1, b2)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%s\t[%g, %g]\t%g\n", name, color, lo, hi, rms)
		}
	}
	return w.Flush()
}

type strategiesCmd struct{}

func (strategiesCmd) Run() error {
	for _, name := range lightcurve.Names() {
		fmt.Println(name)
	}
	return nil
}
