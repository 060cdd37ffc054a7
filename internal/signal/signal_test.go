package signal

import (
	"regexp"
	"testing"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+:[0-9a-f]{16}$`)

func TestBuildStableID(t *testing.T) {
	id := BuildStableID("app/config.py", 3, "hardcoded_url_v1", "https://api.internal.io")
	if !idPattern.MatchString(id) {
		t.Fatalf("unexpected id shape: %s", id)
	}
	if id[:len("hardcoded_url:")] != "hardcoded_url:" {
		t.Fatalf("version suffix not stripped: %s", id)
	}
	if again := BuildStableID("app/config.py", 3, "hardcoded_url_v1", "https://api.internal.io"); again != id {
		t.Fatalf("id not stable: %s != %s", again, id)
	}
	if ws := BuildStableID("app/config.py", 3, "hardcoded_url_v1", "  https://api.internal.io\n"); ws != id {
		t.Fatalf("surrounding whitespace changed the id: %s", ws)
	}
	if other := BuildStableID("app/config.py", 4, "hardcoded_url_v1", "https://api.internal.io"); other == id {
		t.Fatalf("line is not part of the fingerprint")
	}
}

func TestIDPrefix(t *testing.T) {
	tests := map[string]string{
		"secret_v1":         "secret",
		"go_structural_v12": "go_structural",
		"engine":            "engine",
		"weird_vx":          "weird_vx",
	}
	for in, want := range tests {
		if got := idPrefix(in); got != want {
			t.Errorf("idPrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSeverityOrdering(t *testing.T) {
	if !SeverityCritical.AtLeast(SeverityHigh) || SeverityLow.AtLeast(SeverityMedium) {
		t.Fatalf("severity ordering broken")
	}
	if sev, ok := ParseSeverity(" HIGH "); !ok || sev != SeverityHigh {
		t.Fatalf("ParseSeverity(HIGH) = %q, %v", sev, ok)
	}
	if _, ok := ParseSeverity("urgent"); ok {
		t.Fatalf("unknown severity accepted")
	}
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{"secret", " ", "aws", "secret"})
	if len(got) != 2 || got[0] != "aws" || got[1] != "secret" {
		t.Fatalf("NormalizeTags = %v", got)
	}
	if NormalizeTags(nil) != nil {
		t.Fatalf("empty input should stay nil")
	}
}
