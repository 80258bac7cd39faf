package manifest

import (
	"fmt"

	"github.com/hookmill/hookmill/pkg/lifecycle"
)

// PartitionResult separates rendered manifests into lifecycle hooks and
// ordinary tracked resources.
type PartitionResult struct {
	// Hooks indexes hook manifests by every phase they declare. A
	// manifest bound to two phases appears in both buckets.
	Hooks lifecycle.HookSet

	// Resources are the manifests with no recognized phase binding, in
	// input order. These belong to the release's tracked resource set.
	Resources []*Manifest

	// Warnings reports unrecognized phase entries encountered under the
	// permissive extraction policy.
	Warnings []string
}

// Partition splits an ordered, already-flattened manifest sequence into a
// hook set and the ordinary resource bucket. Bucket order follows input
// order (discovery order); this is documented behavior, not an execution
// ordering guarantee among hooks of one phase.
func Partition(manifests []*Manifest, extractor *Extractor) (*PartitionResult, error) {
	if extractor == nil {
		extractor = &Extractor{}
	}

	result := &PartitionResult{
		Hooks:     make(lifecycle.HookSet),
		Resources: make([]*Manifest, 0, len(manifests)),
	}

	for _, m := range manifests {
		extraction, err := extractor.Extract(m)
		if err != nil {
			return nil, err
		}

		for _, entry := range extraction.Unrecognized {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("manifest %s: ignoring unrecognized phase %q", m.Name, entry))
		}

		if !extraction.IsHook() {
			result.Resources = append(result.Resources, m)
			continue
		}

		result.Hooks.Add(&lifecycle.Hook{
			Name:     m.Name,
			Kind:     m.Kind,
			Phases:   extraction.Phases,
			Manifest: m.Raw,
		})
	}

	return result, nil
}
