package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/treestate/internal/config"
	ferrors "git.home.luguber.info/inful/treestate/internal/foundation/errors"
	"git.home.luguber.info/inful/treestate/internal/journal"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int    `short:"n" help:"Maximum number of batches to list" default:"20"`
	Store string `help:"Only list batches of this store id"`
	JSON  bool   `name:"json" help:"Print entries as JSON"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := LoadConfig(root.Config, g.logger())
	if err != nil {
		return err
	}
	return RunHistory(context.Background(), os.Stdout, cfg, HistoryOptions{
		Limit: h.Limit,
		Store: h.Store,
		JSON:  h.JSON,
	})
}

// HistoryOptions filters and formats the listing.
type HistoryOptions struct {
	Limit int
	Store string
	JSON  bool
}

// RunHistory prints the newest journaled batches, newest first.
func RunHistory(ctx context.Context, w io.Writer, cfg *config.Config, opts HistoryOptions) error {
	if opts.Limit <= 0 {
		return ferrors.ValidationError("limit must be positive").
			WithContext("limit", opts.Limit).
			Build()
	}
	// Opening a missing file would create an empty journal.
	if _, err := os.Stat(cfg.Journal.Path); errors.Is(err, fs.ErrNotExist) {
		return ferrors.NotFoundError("journal not found").
			WithContext("file", cfg.Journal.Path).
			Build()
	}

	js, err := journal.NewSQLiteStore(cfg.Journal.Path)
	if err != nil {
		return err
	}
	defer func() { _ = js.Close() }()

	var entries []journal.Entry
	if opts.Store != "" {
		entries, err = js.ForStore(ctx, opts.Store, opts.Limit)
	} else {
		entries, err = js.Recent(ctx, opts.Limit)
	}
	if err != nil {
		return err
	}

	if opts.JSON {
		if entries == nil {
			entries = []journal.Entry{}
		}
		return writeJSON(w, entries)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "AT\tSTORE\tBATCH\tSIZE\tPATHS")
	for _, e := range entries {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			e.At.Format(time.RFC3339Nano), e.StoreID, e.BatchID, e.Size, strings.Join(e.Paths, ","))
	}
	return tw.Flush()
}
