package apitree

import (
	"errors"
	"fmt"
)

var (
	// ErrNoMatch is wrapped by CoverageError.
	ErrNoMatch = errors.New("apitree: no classification rule matched")
	// ErrRuleConflict is wrapped by ConflictError.
	ErrRuleConflict = errors.New("apitree: classification rules conflict")
)

// CoverageError reports a symbol the rule set cannot classify.
type CoverageError struct {
	Symbol string // dotted path of the symbol
	Rule   string // deepest rule that matched
	Reason string
}

func (e *CoverageError) Error() string {
	return fmt.Sprintf("apitree: cannot classify %s (stopped at %s): %s", e.Symbol, e.Rule, e.Reason)
}

func (e *CoverageError) Unwrap() error { return ErrNoMatch }

// ConflictError reports two sibling rules that both apply to a symbol.
type ConflictError struct {
	Symbol string
	Parent string
	First  string
	Second string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("apitree: %s matches both %s and %s (refinements of %s)",
		e.Symbol, e.First, e.Second, e.Parent)
}

func (e *ConflictError) Unwrap() error { return ErrRuleConflict }
