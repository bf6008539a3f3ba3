package main

import (
	"context"
	"fmt"
	"os"

	"github.com/amonks/catalog/config"
	"github.com/amonks/catalog/db"
	"github.com/amonks/catalog/fetcher"
	"github.com/amonks/catalog/setflag"
	"github.com/amonks/catalog/subcmd"
	"github.com/goccy/go-json"
)

func runSync(ctx context.Context, cfg *config.Config, db *db.DB, args []string) error {
	subcmd := subcmd.New("run", "do one sync run and print its summary")
	var phaseNames []string
	for _, p := range fetcher.AllPhases {
		phaseNames = append(phaseNames, string(p))
	}
	phases := setflag.New(phaseNames...)
	subcmd.Var(phases, "phases", "comma-separated phases to run; all of them by default")
	if err := subcmd.Parse(args); err != nil {
		return fmt.Errorf("flag parsing err: %w", err)
	}

	fcfg := cfg.FetcherConfig()
	for _, name := range phases.List() {
		phase, err := fetcher.ParsePhase(name)
		if err != nil {
			return err
		}
		fcfg.Phases = append(fcfg.Phases, phase)
	}

	f, _, pub, err := newFetcher(cfg, db, fcfg)
	if err != nil {
		return err
	}
	defer pub.Close()

	summary, err := f.Run(ctx)
	if err != nil {
		return fmt.Errorf("sync run error: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}
