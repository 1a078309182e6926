package apitree

import "strings"

// Predicate is a condition evaluated against a Symbol.
type Predicate func(*Symbol) bool

// FilenameFunc computes the output path of a symbol from the output path of
// its parent. parentFile is "" for the root.
type FilenameFunc func(s *Symbol, parentFile string) string

// Rule is one node of the classification refinement tree. A rule applies to
// a symbol when its own When and those of all its ancestors hold. Nil
// Documented, Recurse and Filename are inherited from the nearest ancestor
// that sets them; at the top, symbols are documented and not recursed.
type Rule struct {
	Name string
	// Abstract rules only group refinements and can never be the final
	// classification of a symbol.
	Abstract    bool
	When        Predicate // nil matches everything
	Documented  Predicate
	Recurse     Predicate
	Filename    FilenameFunc
	Refinements []*Rule
}

func (r *Rule) applies(s *Symbol) bool {
	return r.When == nil || r.When(s)
}

// Match is the classification of one symbol.
type Match struct {
	Rule       *Rule
	Chain      []*Rule // root first, Rule last
	Documented bool
	Recurse    bool

	filename FilenameFunc
}

// Path returns the names of the rules along the chain, joined by "/".
func (m Match) Path() string {
	names := make([]string, len(m.Chain))
	for i, r := range m.Chain {
		names[i] = r.Name
	}
	return strings.Join(names, "/")
}

func (m Match) String() string {
	if m.Rule == nil {
		return "<unclassified>"
	}
	return m.Rule.Name
}

// Classify resolves the rule of s by descending from root into the single
// applicable refinement at each level until none applies.
func Classify(root *Rule, s *Symbol) (Match, error) {
	if !root.applies(s) {
		return Match{}, &CoverageError{Symbol: s.QualName(), Rule: root.Name, Reason: "root rule does not apply"}
	}

	chain := []*Rule{root}
	cur := root
	for {
		var next *Rule
		for _, r := range cur.Refinements {
			if !r.applies(s) {
				continue
			}
			if next != nil {
				return Match{}, &ConflictError{
					Symbol: s.QualName(),
					Parent: cur.Name,
					First:  next.Name,
					Second: r.Name,
				}
			}
			next = r
		}
		if next == nil {
			break
		}
		chain = append(chain, next)
		cur = next
	}

	if cur.Abstract {
		return Match{}, &CoverageError{Symbol: s.QualName(), Rule: cur.Name, Reason: "no concrete refinement applies"}
	}

	m := Match{Rule: cur, Chain: chain, Documented: true}
	var documented, recurse Predicate
	for i := len(chain) - 1; i >= 0; i-- {
		r := chain[i]
		if documented == nil {
			documented = r.Documented
		}
		if recurse == nil {
			recurse = r.Recurse
		}
		if m.filename == nil {
			m.filename = r.Filename
		}
	}
	if documented != nil {
		m.Documented = documented(s)
	}
	if recurse != nil {
		m.Recurse = recurse(s)
	}
	if m.Documented && m.filename == nil {
		return Match{}, &CoverageError{Symbol: s.QualName(), Rule: cur.Name, Reason: "documented rule has no filename"}
	}
	return m, nil
}

// excludedRule replaces the match of symbols hidden by an ExcludeFunc.
var excludedRule = &Rule{Name: Excluded, Documented: never, Recurse: never}

func (m Match) excluded() Match {
	chain := make([]*Rule, 0, len(m.Chain)+1)
	chain = append(chain, m.Chain...)
	return Match{
		Rule:     excludedRule,
		Chain:    append(chain, excludedRule),
		filename: m.filename,
	}
}

// Filename computes the output path of s given the output path of its parent.
func (m Match) Filename(s *Symbol, parentFile string) string {
	if m.filename == nil {
		return ""
	}
	return m.filename(s, parentFile)
}
