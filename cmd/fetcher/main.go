// Command fetcher pulls a year of rate history, stores it when a database is
// configured, and prints the short-term estimate.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fluxorio/exchanger/pkg/app"
	"github.com/fluxorio/exchanger/pkg/config"
)

func main() {
	days := flag.Int("days", 360, "days of history to fetch")
	estimate := flag.Int("estimate", 4, "estimate length, counting the latest date")
	flag.Parse()

	if err := run(*days, *estimate); err != nil {
		log.Fatalf("fetcher: %v", err)
	}
}

func run(days, estimate int) error {
	cfg, err := config.LoadAppFromEnv()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := deps.Close(context.Background()); cerr != nil {
			deps.Logger.Errorf("shutdown: %v", cerr)
		}
	}()

	series, err := deps.Client.FetchTimeSeries(ctx, days)
	if err != nil {
		return err
	}
	deps.Logger.Infof("fetched %d rates", series.Len())

	resp, err := deps.Estimator.Estimate(series, estimate)
	if err != nil {
		return err
	}
	out, err := resp.JSON()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(os.Stdout, string(out))
	return err
}
