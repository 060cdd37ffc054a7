package linker

import (
	"fmt"

	"disruptiq/internal/signal"
)

// OverlapRule links signals of one file whose byte ranges intersect.
type OverlapRule struct{}

func (OverlapRule) Name() string { return "overlap" }

func (OverlapRule) Link(idx *Index) ([]signal.Relationship, Stats) {
	var out []signal.Relationship
	stats := Stats{Skipped: len(idx.Capped())}
	for _, file := range idx.Files() {
		sigs := idx.InFile(file)
		for i, a := range sigs {
			if a.Length <= 0 {
				continue
			}
			for _, b := range sigs[i+1:] {
				if b.Offset >= a.End() {
					break
				}
				stats.Candidates++
				if b.Length <= 0 || a.ID == b.ID {
					continue
				}
				out = append(out, signal.Relationship{
					From:        a.ID,
					To:          b.ID,
					Type:        RelOverlaps,
					Description: fmt.Sprintf("%s and %s match the same text", a.DetectorID, b.DetectorID),
				})
				stats.Linked++
			}
		}
	}
	return out, stats
}

// SharedValueRule links signals from different detectors that reference the
// same literal, in any file. Each group is linked to its first member.
type SharedValueRule struct{}

func (SharedValueRule) Name() string { return "shared_value" }

func (SharedValueRule) Link(idx *Index) ([]signal.Relationship, Stats) {
	groups := make(map[string][]*signal.Signal)
	var order []string
	for _, s := range idx.All() {
		if len(s.Value) < 4 {
			continue
		}
		if _, ok := groups[s.Value]; !ok {
			order = append(order, s.Value)
		}
		groups[s.Value] = append(groups[s.Value], s)
	}

	var out []signal.Relationship
	var stats Stats
	for _, value := range order {
		group := groups[value]
		anchor := group[0]
		for _, s := range group[1:] {
			stats.Candidates++
			if s.DetectorID == anchor.DetectorID {
				stats.Skipped++
				continue
			}
			typ := RelReferences
			if isSecretLike(anchor) && isSecretLike(s) {
				typ = RelSameSecretFamily
			}
			out = append(out, signal.Relationship{
				From:        anchor.ID,
				To:          s.ID,
				Type:        typ,
				Description: fmt.Sprintf("%s and %s reference the same value", anchor.DetectorID, s.DetectorID),
			})
			stats.Linked++
		}
	}
	return out, stats
}

func isSecretLike(s *signal.Signal) bool {
	return s.Type == signal.TypeSecret || s.Type == signal.TypeHighEntropy
}

// ManifestScriptRule links dependency findings to install scripts of the
// same manifest.
type ManifestScriptRule struct{}

func (ManifestScriptRule) Name() string { return "manifest_script" }

func (ManifestScriptRule) Link(idx *Index) ([]signal.Relationship, Stats) {
	var out []signal.Relationship
	stats := Stats{Skipped: len(idx.Capped())}
	for _, file := range idx.Files() {
		var deps, scripts []*signal.Signal
		for _, s := range idx.InFile(file) {
			switch s.Type {
			case signal.TypeUnpinnedVersion, signal.TypeGitDependency:
				deps = append(deps, s)
			case signal.TypePostinstall:
				scripts = append(scripts, s)
			}
		}
		for _, d := range deps {
			for _, sc := range scripts {
				stats.Candidates++
				out = append(out, signal.Relationship{
					From:        d.ID,
					To:          sc.ID,
					Type:        RelInstalledBy,
					Description: fmt.Sprintf("dependency on line %d is installed while script on line %d runs", d.Line, sc.Line),
				})
				stats.Linked++
			}
		}
	}
	return out, stats
}

// ConnectionSecretRule links secrets to database connections a few lines
// away in the same file.
type ConnectionSecretRule struct {
	Distance int
}

func (ConnectionSecretRule) Name() string { return "connection_secret" }

func (r ConnectionSecretRule) Link(idx *Index) ([]signal.Relationship, Stats) {
	var out []signal.Relationship
	stats := Stats{Skipped: len(idx.Capped())}
	for _, file := range idx.Files() {
		var secrets, conns []*signal.Signal
		for _, s := range idx.InFile(file) {
			switch s.Type {
			case signal.TypeSecret:
				secrets = append(secrets, s)
			case signal.TypeDatabaseConn:
				conns = append(conns, s)
			}
		}
		for _, sec := range secrets {
			for _, c := range conns {
				stats.Candidates++
				if abs(sec.Line-c.Line) > r.Distance {
					continue
				}
				out = append(out, signal.Relationship{
					From:        sec.ID,
					To:          c.ID,
					Type:        RelUsedBy,
					Description: fmt.Sprintf("secret on line %d is near the connection on line %d", sec.Line, c.Line),
				})
				stats.Linked++
			}
		}
	}
	return out, stats
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
