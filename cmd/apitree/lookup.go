package main

import (
	"github.com/spf13/cobra"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <name>...",
	Short: "Resolve reference names to output paths",
	Long: "Resolves each name against every stored tree. A name resolves when exactly one node is registered " +
		"under it; a leading @ is ignored. Ambiguous names report their candidates.",
	Args: cobra.MinimumNArgs(1),
	RunE: runLookup,
}

func runLookup(cmd *cobra.Command, args []string) error {
	builder, err := openBuilder()
	if err != nil {
		return outputError("lookup", err)
	}
	defer builder.Close()

	results := make([]CLIRef, 0, len(args))
	resolved := 0
	for _, name := range args {
		ref := CLIRef{Name: name}
		filename, ok, err := builder.Lookup(name)
		if err != nil {
			return outputError("lookup", err)
		}
		if ok {
			ref.Filename = filename
			ref.Resolved = true
			resolved++
		} else {
			nodes, err := builder.Store().RefNodes(name)
			if err != nil {
				return outputError("lookup", err)
			}
			for _, n := range nodes {
				ref.Candidates = append(ref.Candidates, n.QualName)
			}
		}
		results = append(results, ref)
	}
	return outputResult(CLIResult{Command: "lookup", Results: results, TotalCount: intPtr(resolved)})
}
