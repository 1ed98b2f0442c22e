// dgquery probes the filtering decision for a domain straight from the
// persisted state, without a running daemon. Useful for debugging which
// list or rule is responsible for a block.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jroosing/domainguard/internal/blocklist"
	"github.com/jroosing/domainguard/internal/database"
	"github.com/jroosing/domainguard/internal/rules"
)

func main() {
	var (
		dbPath = flag.String("db", "domainguard.db", "Path to the state database")
		appID  = flag.String("app", "", "Application identifier (optional)")
		quiet  = flag.Bool("quiet", false, "Suppress output (exit status 0=allowed, 2=blocked)")
	)
	flag.Parse()

	domain := flag.Arg(0)
	if domain == "" {
		fmt.Fprintln(os.Stderr, "usage: dgquery [-db path] [-app id] <domain>")
		os.Exit(1)
	}

	// No log chatter on a CLI probe.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	db, err := database.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dgquery: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	resolver := rules.NewResolver(logger)
	manager := blocklist.NewManager(db, blocklist.NewHTTPFetcher(0), resolver, logger)
	if err := manager.Bootstrap(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "dgquery: %v\n", err)
		os.Exit(1)
	}

	d := resolver.Decide(domain, *appID)
	if !*quiet {
		fmt.Printf("domain=%s action=%s reason=%q", domain, d.Action, d.Reason)
		if d.MatchedList != "" {
			fmt.Printf(" list=%s", d.MatchedList)
		}
		if d.MatchedRule != "" {
			fmt.Printf(" rule=%s", d.MatchedRule)
		}
		fmt.Println()
	}
	if d.Action == rules.ActionBlock {
		os.Exit(2)
	}
}
