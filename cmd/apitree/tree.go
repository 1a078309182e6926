package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/apitree"
	"github.com/jward/apitree/internal/store"
)

var flagAllNodes bool

var treeCmd = &cobra.Command{
	Use:   "tree [name]",
	Short: "List stored trees, or the nodes of one tree",
	Long: "Without a name, lists every stored tree. With a name (the alias, or the module when it has none), " +
		"prints the documented nodes of that tree in pre-order; --all includes undocumented nodes.",
	Args: cobra.MaximumNArgs(1),
	RunE: runTree,
}

func init() {
	treeCmd.Flags().BoolVar(&flagAllNodes, "all", false, "include undocumented nodes")
}

func runTree(cmd *cobra.Command, args []string) error {
	builder, err := openBuilder()
	if err != nil {
		return outputError("tree", err)
	}
	defer builder.Close()
	s := builder.Store()

	if len(args) == 0 {
		trees, err := s.Trees()
		if err != nil {
			return outputError("tree", err)
		}
		results := make([]CLITree, len(trees))
		for i, t := range trees {
			results[i] = toCLITree(t)
		}
		return outputResult(CLIResult{Command: "tree", Results: results, TotalCount: intPtr(len(results))})
	}

	t, err := s.TreeByName(args[0])
	if err != nil {
		return outputError("tree", err)
	}
	if t == nil {
		return outputError("tree", fmt.Errorf("no tree named %q", args[0]))
	}
	var nodes []*store.Node
	if flagAllNodes {
		nodes, err = s.Nodes(t.ID)
	} else {
		nodes, err = s.DocumentedNodes(t.ID)
	}
	if err != nil {
		return outputError("tree", err)
	}
	results := make([]CLINode, len(nodes))
	for i, n := range nodes {
		results[i] = toCLINode(n)
	}
	return outputResult(CLIResult{Command: "tree", Results: results, TotalCount: intPtr(len(results))})
}

// openBuilder opens the database the current configuration points at.
func openBuilder() (*apitree.Builder, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	dbPath, err := openDBPath(cfg)
	if err != nil {
		return nil, err
	}
	opts, err := builderOptions(cfg)
	if err != nil {
		return nil, err
	}
	return apitree.New(dbPath, opts...)
}

func toCLITree(t *store.Tree) CLITree {
	return CLITree{
		Module:     t.Module,
		Alias:      t.Alias,
		SourceRoot: t.SourceRoot,
		BuiltAt:    t.BuiltAt.UTC().Format(time.RFC3339),
		NodeCount:  t.NodeCount,
	}
}

func toCLINode(n *store.Node) CLINode {
	return CLINode{
		QualName: n.QualName,
		Name:     n.Name,
		Kind:     n.Kind,
		Rule:     n.Rule,
		RulePath: n.RulePath,
		Depth:    n.Depth,
		Filename: n.Filename,
	}
}
