package manifest

import (
	"fmt"
	"strings"

	"github.com/hookmill/hookmill/pkg/lifecycle"
)

// AnnotationKey is the metadata annotation that binds a manifest to
// lifecycle phases. Its value is a comma-separated list of phase
// identifiers, matched case-sensitively against the closed phase set.
const AnnotationKey = "hookmill.io/hooks"

// Extractor extracts lifecycle phase bindings from manifest annotations.
//
// The default policy is permissive-ignore: entries outside the closed
// phase set are reported as unrecognized while the valid entries still
// take effect. With Strict set, any unrecognized entry rejects the
// manifest's whole hook binding instead.
type Extractor struct {
	// Strict rejects the manifest on the first unrecognized phase entry.
	Strict bool
}

// Extraction is the result of extracting phase bindings from one manifest.
type Extraction struct {
	// Phases is the set of recognized phases, deduplicated, in first
	// occurrence order.
	Phases []lifecycle.Phase

	// Unrecognized lists annotation entries outside the closed phase set.
	// Populated only under the permissive policy.
	Unrecognized []string
}

// IsHook returns true if the manifest declared at least one recognized
// phase. A manifest with zero recognized phases is not a hook; it is an
// ordinary tracked release resource.
func (e *Extraction) IsHook() bool {
	return len(e.Phases) > 0
}

// Extract returns the phase bindings declared on a manifest. A manifest
// without the annotation, or with an empty value, yields an empty set.
func (x *Extractor) Extract(m *Manifest) (*Extraction, error) {
	result := &Extraction{}

	value, ok := m.Annotations[AnnotationKey]
	if !ok {
		return result, nil
	}

	seen := make(map[lifecycle.Phase]struct{})
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		phase := lifecycle.Phase(entry)
		if err := phase.Validate(); err != nil {
			if x.Strict {
				return nil, lifecycle.NewPermanentError(
					fmt.Sprintf("manifest %s declares unrecognized phase %q", m.Name, entry), nil).
					WithCode(lifecycle.ErrCodeUnrecognizedPhase)
			}
			result.Unrecognized = append(result.Unrecognized, entry)
			continue
		}

		// Phases are a set: a duplicate entry binds nothing new.
		if _, dup := seen[phase]; dup {
			continue
		}
		seen[phase] = struct{}{}
		result.Phases = append(result.Phases, phase)
	}

	return result, nil
}
