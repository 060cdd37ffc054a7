package linker

import (
	"sort"

	"disruptiq/internal/signal"
)

// Relationship types.
const (
	RelOverlaps         = "overlaps"
	RelSameSecretFamily = "same_secret_family"
	RelReferences       = "references"
	RelInstalledBy      = "installed_by"
	RelUsedBy           = "used_by"
)

type Stats struct {
	Candidates int
	Linked     int
	Skipped    int
}

// Rule derives relationships from the complete signal index.
type Rule interface {
	Name() string
	Link(idx *Index) ([]signal.Relationship, Stats)
}

type StageResult struct {
	Rule          string
	Stats         Stats
	Relationships int
}

type Chain struct {
	rules      []Rule
	maxPerFile int
}

func NewChain(maxPerFile int, rules ...Rule) *Chain {
	return &Chain{rules: rules, maxPerFile: maxPerFile}
}

// NewDefaultChain runs every built-in rule.
func NewDefaultChain() *Chain {
	return NewChain(DefaultMaxPerFile,
		OverlapRule{},
		SharedValueRule{},
		ManifestScriptRule{},
		ConnectionSecretRule{Distance: 3},
	)
}

// Run applies each rule in order and returns deduplicated, sorted
// relationships together with per-rule stats.
func (c *Chain) Run(signals []signal.Signal) ([]signal.Relationship, []StageResult) {
	idx := NewIndex(signals, c.maxPerFile)

	type key struct{ from, to, typ string }
	seen := make(map[key]bool)
	var rels []signal.Relationship
	var stages []StageResult

	for _, r := range c.rules {
		found, stats := r.Link(idx)
		added := 0
		for _, rel := range found {
			k := key{rel.From, rel.To, rel.Type}
			if rel.From == rel.To || seen[k] {
				continue
			}
			seen[k] = true
			rels = append(rels, rel)
			added++
		}
		stages = append(stages, StageResult{Rule: r.Name(), Stats: stats, Relationships: added})
	}

	sort.Slice(rels, func(i, j int) bool {
		if rels[i].From != rels[j].From {
			return rels[i].From < rels[j].From
		}
		if rels[i].To != rels[j].To {
			return rels[i].To < rels[j].To
		}
		return rels[i].Type < rels[j].Type
	})
	return rels, stages
}
