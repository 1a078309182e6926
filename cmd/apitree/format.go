package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// formatTreesText formats CLITree results as aligned columns.
func formatTreesText(w io.Writer, trees []CLITree) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODULE\tALIAS\tNODES\tSOURCE\tBUILT")
	for _, t := range trees {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", t.Module, t.Alias, t.NodeCount, t.SourceRoot, t.BuiltAt)
	}
	tw.Flush()
}

// formatNodesText prints nodes indented by depth, one per line.
func formatNodesText(w io.Writer, nodes []CLINode) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tRULE\tFILENAME")
	for _, n := range nodes {
		fmt.Fprintf(tw, "%s%s\t%s\t%s\n", strings.Repeat("  ", n.Depth), n.Name, n.Rule, n.Filename)
	}
	tw.Flush()
}

// formatRefsText prints "name filename" for resolved references and the
// candidates of ambiguous ones.
func formatRefsText(w io.Writer, refs []CLIRef) {
	for _, r := range refs {
		switch {
		case r.Resolved:
			fmt.Fprintf(w, "%s\t%s\n", r.Name, r.Filename)
		case len(r.Candidates) > 0:
			fmt.Fprintf(w, "%s\tambiguous: %s\n", r.Name, strings.Join(r.Candidates, ", "))
		default:
			fmt.Fprintf(w, "%s\tnot found\n", r.Name)
		}
	}
}

// outputResultText dispatches to the appropriate text formatter based on the
// result type.
func outputResultText(w io.Writer, result CLIResult) error {
	switch v := result.Results.(type) {
	case []CLITree:
		formatTreesText(w, v)
	case []CLINode:
		formatNodesText(w, v)
	case []CLIRef:
		formatRefsText(w, v)
	case string:
		fmt.Fprintln(w, v)
	case nil:
	default:
		return fmt.Errorf("unsupported result type for text format: %T", v)
	}
	return nil
}

// outputResult writes a result in the selected format to stdout.
func outputResult(result CLIResult) error {
	return writeResult(os.Stdout, result)
}

func writeResult(w io.Writer, result CLIResult) error {
	if flagFormat == "text" {
		return outputResultText(w, result)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// outputError writes an error in the selected format and returns it so RunE
// can propagate it to Cobra. In JSON mode the error is written to stdout as a
// CLIResult envelope. In text mode it goes to stderr.
func outputError(command string, err error) error {
	errorHandled = true
	if flagFormat == "text" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(CLIResult{Command: command, Error: err.Error()})
	return err
}

// validFormats lists accepted values for --format.
var validFormats = []string{"json", "text"}

// validateFormat checks that the --format flag value is recognized.
func validateFormat(format string) error {
	for _, f := range validFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("invalid format %q: must be %s", format, strings.Join(validFormats, " or "))
}
