package main

import (
	"context"
	"fmt"
	"os"

	"github.com/amonks/catalog/db"
	"github.com/amonks/catalog/subcmd"
	"github.com/jedib0t/go-pretty/v6/table"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func progress(ctx context.Context, db *db.DB, args []string) error {
	subcmd := subcmd.New("progress", "report how much of the catalog we hold and how much is stale")
	if err := subcmd.Parse(args); err != nil {
		return fmt.Errorf("flag parsing err: %w", err)
	}

	p, err := db.Progress(ctx)
	if err != nil {
		return err
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"", "Known", "Stale"})
	t.AppendRow(table.Row{"genres", human(p.Genres), ""})
	t.AppendRow(table.Row{"artists", human(p.Artists), ""})
	t.AppendRow(table.Row{"albums", human(p.Albums), stale(p.StaleAlbums, p.Albums)})
	t.Render()
	return nil
}

var humanPrinter = message.NewPrinter(language.English)

func human(n int) string {
	return humanPrinter.Sprintf("%d", n)
}

func stale(n, of int) string {
	if of == 0 {
		return human(n)
	}
	return humanPrinter.Sprintf("%d (%.2f%%)", n, 100.0*float64(n)/float64(of))
}
