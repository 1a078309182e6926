package main

// CLIResult is the top-level JSON envelope for all commands.
type CLIResult struct {
	Command    string `json:"command"`
	Results    any    `json:"results"`
	TotalCount *int   `json:"total_count,omitempty"`
	Error      string `json:"error,omitempty"`
}

// CLITree summarizes one stored tree.
type CLITree struct {
	Module          string `json:"module"`
	Alias           string `json:"alias,omitempty"`
	SourceRoot      string `json:"source_root,omitempty"`
	BuiltAt         string `json:"built_at,omitempty"`
	NodeCount       int    `json:"node_count"`
	DocumentedCount int    `json:"documented_count,omitempty"`
}

// CLINode is a JSON-friendly classified node.
type CLINode struct {
	QualName string `json:"qualname"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Rule     string `json:"rule"`
	RulePath string `json:"rule_path,omitempty"`
	Depth    int    `json:"depth"`
	Filename string `json:"filename,omitempty"`
}

// CLIRef is the outcome of resolving one reference name.
type CLIRef struct {
	Name       string   `json:"name"`
	Filename   string   `json:"filename,omitempty"`
	Resolved   bool     `json:"resolved"`
	Candidates []string `json:"candidates,omitempty"`
}
