package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/apitree"
	"github.com/jward/apitree/internal/config"
	"github.com/jward/apitree/internal/watch"
)

var flagDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [source-root]",
	Short: "Rebuild trees whenever Python sources change",
	Long: "Builds the selected modules like build, then rebuilds all of them after every batch of .py changes " +
		"under their source roots. Runs until interrupted.",
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringSliceVarP(&flagModules, "module", "m", nil, "dotted name of the package to build (repeatable)")
	watchCmd.Flags().StringVar(&flagAlias, "alias", "", "display name of the root package (single --module only)")
	watchCmd.Flags().StringArrayVar(&flagExcludes, "exclude", nil, "Risor expression; symbols for which it is true are hidden (repeatable)")
	watchCmd.Flags().StringArrayVar(&flagExcludeScripts, "exclude-script", nil, ".risor file used as an exclusion expression (repeatable)")
	watchCmd.Flags().StringVar(&flagScriptsDir, "scripts-dir", "", "directory for Risor imports and relative script paths")
	watchCmd.Flags().DurationVar(&flagDebounce, "debounce", watch.DefaultDebounce, "quiet period before a rebuild")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return outputError("watch", err)
	}
	targets, err := buildTargets(args, cfg)
	if err != nil {
		return outputError("watch", err)
	}
	dbPath, err := openDBPath(cfg)
	if err != nil {
		return outputError("watch", err)
	}
	opts, err := builderOptions(cfg)
	if err != nil {
		return outputError("watch", err)
	}
	builder, err := apitree.New(dbPath, opts...)
	if err != nil {
		return outputError("watch", fmt.Errorf("creating builder: %w", err))
	}
	defer builder.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rebuild(ctx, builder, targets)

	w, err := watch.New(sourceRoots(targets), watch.WithDebounce(flagDebounce), watch.WithLogger(slog.Default()))
	if err != nil {
		return outputError("watch", err)
	}
	defer w.Close()

	fmt.Fprintf(os.Stderr, "Watching %d module(s); database %s\n", len(targets), dbPath)
	err = w.Run(ctx, func(ctx context.Context, changed []string) {
		slog.Info("sources changed", "files", len(changed))
		rebuild(ctx, builder, targets)
	})
	if err != nil && ctx.Err() == nil {
		return outputError("watch", err)
	}
	return nil
}

// rebuild builds every target and reports failures without stopping the
// watch loop. A module whose build fails keeps its previously stored tree.
func rebuild(ctx context.Context, builder *apitree.Builder, targets []config.Module) {
	start := time.Now()
	results, err := buildAll(ctx, builder, targets)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Build failed: %s\n", err)
		return
	}
	nodes := 0
	for _, r := range results {
		nodes += r.NodeCount
	}
	fmt.Fprintf(os.Stderr, "Built %d module(s), %d nodes in %s\n",
		len(results), nodes, time.Since(start).Round(time.Millisecond))
}

func sourceRoots(targets []config.Module) []string {
	seen := make(map[string]bool)
	var roots []string
	for _, t := range targets {
		if !seen[t.Path] {
			seen[t.Path] = true
			roots = append(roots, t.Path)
		}
	}
	return roots
}
