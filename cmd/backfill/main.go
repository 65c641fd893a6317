package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/goccy/go-json"

	"github.com/yungbote/progressfacts/internal/app"
	"github.com/yungbote/progressfacts/internal/platform/dbctx"
	"github.com/yungbote/progressfacts/internal/progress/backfill"
)

type idList []string

func (l *idList) String() string { return strings.Join(*l, ",") }
func (l *idList) Set(v string) error {
	v = strings.TrimSpace(v)
	if v != "" {
		*l = append(*l, v)
	}
	return nil
}

func main() {
	var owners idList
	var all, dryRun bool
	var limit int
	flag.Var(&owners, "owner", "owner id to reconcile (repeatable)")
	flag.BoolVar(&all, "all", false, "reconcile every owner with history")
	flag.BoolVar(&dryRun, "dry-run", false, "compute reports without writing")
	flag.IntVar(&limit, "limit", 0, "limit number of owners processed")
	flag.Parse()

	if len(owners) == 0 && !all {
		fmt.Println("nothing to do: pass -owner or -all")
		os.Exit(2)
	}

	application, err := app.New()
	if err != nil {
		fmt.Printf("init app: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if all {
		listed, err := application.Storage.History.Owners(dbctx.Context{Ctx: ctx})
		if err != nil {
			fmt.Printf("list owners: %v\n", err)
			os.Exit(1)
		}
		owners = append(owners, listed...)
	}
	if limit > 0 && len(owners) > limit {
		owners = owners[:limit]
	}

	reports, err := application.Reconciler(backfill.WithDryRun(dryRun)).ReconcileAll(ctx, owners)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	failed := 0
	for _, rep := range reports {
		// Facts are large; the summary is enough on the console.
		rep.Fact = nil
		if rep.Status == backfill.StatusFailed {
			failed++
		}
		_ = enc.Encode(rep)
	}
	fmt.Printf("owners=%d failed=%d dry_run=%v\n", len(reports), failed, dryRun)
	if err != nil {
		fmt.Printf("interrupted: %v\n", err)
		os.Exit(1)
	}
	if failed > 0 {
		os.Exit(1)
	}
}
