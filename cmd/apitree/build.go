package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/apitree"
	"github.com/jward/apitree/internal/config"
	"github.com/jward/apitree/internal/pysrc"
	"github.com/jward/apitree/scripts"
)

var (
	flagModules        []string
	flagAlias          string
	flagExcludes       []string
	flagExcludeScripts []string
	flagScriptsDir     string
	flagForce          bool
)

var buildCmd = &cobra.Command{
	Use:   "build [source-root]",
	Short: "Build and store the API tree of one or more packages",
	Long: "Loads the Python sources under source-root, classifies every symbol reachable from each module " +
		"and replaces the stored tree of that module. Without --module, the modules listed in " + config.FileName + " are built.",
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().StringSliceVarP(&flagModules, "module", "m", nil, "dotted name of the package to build (repeatable)")
	buildCmd.Flags().StringVar(&flagAlias, "alias", "", "display name of the root package (single --module only)")
	buildCmd.Flags().StringArrayVar(&flagExcludes, "exclude", nil, "Risor expression; symbols for which it is true are hidden (repeatable)")
	buildCmd.Flags().StringArrayVar(&flagExcludeScripts, "exclude-script", nil, ".risor file used as an exclusion expression (repeatable)")
	buildCmd.Flags().StringVar(&flagScriptsDir, "scripts-dir", "", "directory for Risor imports and relative script paths")
	buildCmd.Flags().BoolVar(&flagForce, "force", false, "delete the database before building")
}

func runBuild(cmd *cobra.Command, args []string) error {
	start := time.Now()

	cfg, err := loadConfig()
	if err != nil {
		return outputError("build", err)
	}
	targets, err := buildTargets(args, cfg)
	if err != nil {
		return outputError("build", err)
	}

	dbPath, err := openDBPath(cfg)
	if err != nil {
		return outputError("build", err)
	}
	if flagForce {
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			return outputError("build", fmt.Errorf("removing database for --force: %w", err))
		}
		slog.Info("cleared database", "path", dbPath)
	}

	opts, err := builderOptions(cfg)
	if err != nil {
		return outputError("build", err)
	}
	builder, err := apitree.New(dbPath, opts...)
	if err != nil {
		return outputError("build", fmt.Errorf("creating builder: %w", err))
	}
	defer builder.Close()

	results, err := buildAll(context.Background(), builder, targets)
	if err != nil {
		return outputError("build", err)
	}

	slog.Info("build finished", "modules", len(results), "database", dbPath,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return outputResult(CLIResult{Command: "build", Results: results, TotalCount: intPtr(len(results))})
}

// buildAll loads every target's source root once and builds its tree.
func buildAll(ctx context.Context, builder *apitree.Builder, targets []config.Module) ([]CLITree, error) {
	loaders := make(map[string]*pysrc.Loader)
	results := make([]CLITree, 0, len(targets))
	for _, target := range targets {
		loader, ok := loaders[target.Path]
		if !ok {
			var err error
			loader, err = pysrc.Open(ctx, target.Path, pysrc.WithLogger(slog.Default()))
			if err != nil {
				return nil, fmt.Errorf("loading %s: %w", target.Path, err)
			}
			loaders[target.Path] = loader
		}

		mod, err := loader.Import(target.Name)
		if err != nil {
			return nil, err
		}
		info := apitree.ModuleInfo{Name: target.Name, Alias: target.Alias, Source: target.Path}
		root, err := builder.Build(ctx, mod, info)
		if err != nil {
			return nil, err
		}
		results = append(results, treeResult(root, info))
	}
	return results, nil
}

// buildTargets returns the modules named on the command line, or those of
// the config file.
func buildTargets(args []string, cfg *config.Config) ([]config.Module, error) {
	if len(flagModules) > 0 {
		if flagAlias != "" && len(flagModules) > 1 {
			return nil, fmt.Errorf("--alias needs exactly one --module, got %d", len(flagModules))
		}
		dir, err := resolveTargetDir(args)
		if err != nil {
			return nil, err
		}
		targets := make([]config.Module, len(flagModules))
		for i, name := range flagModules {
			targets[i] = config.Module{Name: name, Path: dir, Alias: flagAlias}
		}
		return targets, nil
	}

	if cfg == nil || len(cfg.Modules) == 0 {
		return nil, fmt.Errorf("no modules to build: pass --module or list modules in %s", config.FileName)
	}
	targets := make([]config.Module, len(cfg.Modules))
	for i, m := range cfg.Modules {
		dir, err := checkDir(m.Path)
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", m.Name, err)
		}
		m.Path = dir
		targets[i] = m
	}
	return targets, nil
}

// builderOptions collects exclude expressions from the config file and the
// command line. Exclude scripts are read from disk here; Risor imports
// resolve against --scripts-dir, or the embedded helper modules.
func builderOptions(cfg *config.Config) ([]apitree.Option, error) {
	exprs := append([]string(nil), flagExcludes...)
	paths := append([]string(nil), flagExcludeScripts...)
	scriptsDir := flagScriptsDir
	if cfg != nil {
		exprs = append(append([]string(nil), cfg.Exclude...), exprs...)
		paths = append(append([]string(nil), cfg.ExcludeScripts...), paths...)
		if scriptsDir == "" {
			scriptsDir = cfg.ScriptsDir
		}
	}
	for _, p := range paths {
		src, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading exclude script: %w", err)
		}
		exprs = append(exprs, string(src))
	}

	opts := []apitree.Option{
		apitree.WithLogger(slog.Default()),
		apitree.WithExcludes(exprs...),
	}
	if scriptsDir != "" {
		opts = append(opts, apitree.WithScriptsDir(scriptsDir))
	} else {
		opts = append(opts, apitree.WithScriptsFS(scripts.FS))
	}
	return opts, nil
}

func treeResult(root *apitree.Node, info apitree.ModuleInfo) CLITree {
	t := CLITree{Module: info.Name, Alias: info.Alias, SourceRoot: info.Source}
	_ = root.Walk(func(n *apitree.Node) error {
		t.NodeCount++
		return nil
	})
	for range root.DocumentedNodes() {
		t.DocumentedCount++
	}
	return t
}

func intPtr(n int) *int { return &n }
