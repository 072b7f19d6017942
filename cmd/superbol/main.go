package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog/log"
)

type cli struct {
	Run        runCmd        `cmd:"" help:"Compute a bolometric light curve."`
	Check      checkCmd      `cmd:"" help:"Validate a configuration and exit."`
	Show       showCmd       `cmd:"" help:"Print a stored light curve."`
	Bands      bandsCmd      `cmd:"" help:"List the reference bands."`
	Methods    methodsCmd    `cmd:"" help:"List the bolometric correction methods."`
	Strategies strategiesCmd `cmd:"" help:"List the registered strategies."`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var args cli
	kctx := kong.Parse(&args,
		kong.Name("superbol"),
		kong.Description("Bolometric light curves from multi-band photometry."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	if err := kctx.Run(); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Fatal().Err(err).Msg("command failed")
	}
}
