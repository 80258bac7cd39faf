package manifest

import (
	"strings"
	"testing"

	"github.com/hookmill/hookmill/pkg/lifecycle"
)

func annotated(name, kind, value string) *Manifest {
	m := &Manifest{Name: name, Kind: kind, Raw: []byte(name)}
	if value != "" {
		m.Annotations = map[string]string{AnnotationKey: value}
	}
	return m
}

func TestExtractAbsentAnnotation(t *testing.T) {
	x := &Extractor{}

	extraction, err := x.Extract(annotated("plain", "ConfigMap", ""))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if extraction.IsHook() {
		t.Error("Expected manifest without the annotation not to be a hook")
	}
}

func TestExtractEmptyAnnotationValue(t *testing.T) {
	x := &Extractor{}
	m := &Manifest{
		Name:        "empty",
		Kind:        "ConfigMap",
		Annotations: map[string]string{AnnotationKey: "  , ,"},
	}

	extraction, err := x.Extract(m)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if extraction.IsHook() {
		t.Error("Expected manifest with only empty entries not to be a hook")
	}
	if len(extraction.Unrecognized) != 0 {
		t.Errorf("Expected no unrecognized entries, got %v", extraction.Unrecognized)
	}
}

func TestExtractMultiplePhases(t *testing.T) {
	x := &Extractor{}

	extraction, err := x.Extract(annotated("multi", "Job", " pre-install , post-install "))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	want := []lifecycle.Phase{lifecycle.PhasePreInstall, lifecycle.PhasePostInstall}
	if len(extraction.Phases) != len(want) {
		t.Fatalf("Expected %d phases, got %d", len(want), len(extraction.Phases))
	}
	for i, phase := range want {
		if extraction.Phases[i] != phase {
			t.Errorf("Expected phase %d to be %q, got %q", i, phase, extraction.Phases[i])
		}
	}
}

func TestExtractDeduplicatesPhases(t *testing.T) {
	x := &Extractor{}

	extraction, err := x.Extract(annotated("dup", "Job", "pre-upgrade,pre-upgrade,post-upgrade,pre-upgrade"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(extraction.Phases) != 2 {
		t.Fatalf("Expected 2 distinct phases, got %v", extraction.Phases)
	}
	if extraction.Phases[0] != lifecycle.PhasePreUpgrade || extraction.Phases[1] != lifecycle.PhasePostUpgrade {
		t.Errorf("Expected first-occurrence order [pre-upgrade post-upgrade], got %v", extraction.Phases)
	}
}

func TestExtractPermissiveIgnoresUnrecognized(t *testing.T) {
	x := &Extractor{}

	extraction, err := x.Extract(annotated("mixed", "Job", "pre-install,mid-install,Pre-Install"))
	if err != nil {
		t.Fatalf("Expected permissive extraction to succeed, got %v", err)
	}
	if len(extraction.Phases) != 1 || extraction.Phases[0] != lifecycle.PhasePreInstall {
		t.Errorf("Expected only pre-install to bind, got %v", extraction.Phases)
	}

	// Matching is case-sensitive; "Pre-Install" is unrecognized.
	if len(extraction.Unrecognized) != 2 {
		t.Fatalf("Expected 2 unrecognized entries, got %v", extraction.Unrecognized)
	}
	if extraction.Unrecognized[0] != "mid-install" || extraction.Unrecognized[1] != "Pre-Install" {
		t.Errorf("Expected [mid-install Pre-Install], got %v", extraction.Unrecognized)
	}
}

func TestExtractAllUnrecognizedIsNotAHook(t *testing.T) {
	x := &Extractor{}

	extraction, err := x.Extract(annotated("odd", "Job", "mid-install"))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if extraction.IsHook() {
		t.Error("Expected manifest with only unrecognized phases to fall back to ordinary resource")
	}
}

func TestExtractPhaseSetIndependentOfListOrder(t *testing.T) {
	x := &Extractor{}
	entries := []string{"pre-install", "post-upgrade", "pre-delete"}

	forward := strings.Join(entries, ",")
	backward := strings.Join([]string{entries[2], entries[1], entries[0]}, ", ")

	phaseSet := func(value string) map[lifecycle.Phase]struct{} {
		t.Helper()
		extraction, err := x.Extract(annotated("ordered", "Job", value))
		if err != nil {
			t.Fatalf("Expected no error for %q, got %v", value, err)
		}
		set := make(map[lifecycle.Phase]struct{}, len(extraction.Phases))
		for _, phase := range extraction.Phases {
			set[phase] = struct{}{}
		}
		return set
	}

	a, b := phaseSet(forward), phaseSet(backward)
	if len(a) != len(entries) || len(b) != len(entries) {
		t.Fatalf("Expected %d phases from each order, got %d and %d", len(entries), len(a), len(b))
	}
	for phase := range a {
		if _, ok := b[phase]; !ok {
			t.Errorf("Expected phase %q to bind regardless of list order", phase)
		}
	}
}

func TestExtractStrictRejectsUnrecognized(t *testing.T) {
	x := &Extractor{Strict: true}

	_, err := x.Extract(annotated("bad", "Job", "pre-install,mid-install"))
	if err == nil {
		t.Fatal("Expected strict extraction to fail")
	}
	if lifecycle.ErrorCode(err) != lifecycle.ErrCodeUnrecognizedPhase {
		t.Errorf("Expected code %q, got %q",
			lifecycle.ErrCodeUnrecognizedPhase, lifecycle.ErrorCode(err))
	}
}
