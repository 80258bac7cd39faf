// Package manifest handles rendered resource manifests: decoding YAML
// document streams, extracting lifecycle phase annotations, and
// partitioning manifests into hooks and ordinary tracked resources.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest represents one rendered resource manifest.
type Manifest struct {
	// Name is the resource name declared in the manifest metadata.
	Name string `json:"name"`

	// Kind is the declared resource kind (e.g. "Job", "ConfigMap").
	Kind string `json:"kind"`

	// Annotations are the metadata annotations declared on the manifest.
	Annotations map[string]string `json:"annotations,omitempty"`

	// Raw is the manifest document as it will be submitted to the apply
	// mechanism.
	Raw []byte `json:"raw"`
}

// manifestHeader is the subset of a manifest the orchestrator inspects.
type manifestHeader struct {
	Kind     string `yaml:"kind"`
	Metadata struct {
		Name        string            `yaml:"name"`
		Annotations map[string]string `yaml:"annotations"`
	} `yaml:"metadata"`
}

// Decode parses a rendered YAML stream into manifests. Multi-document
// streams are supported; empty documents are skipped. Document order is
// preserved, since it becomes the hook discovery order.
func Decode(data []byte) ([]*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var manifests []*Manifest
	for i := 0; ; i++ {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse manifest document %d: %w", i, err)
		}
		if node.Kind == 0 || node.IsZero() {
			continue
		}

		var header manifestHeader
		if err := node.Decode(&header); err != nil {
			return nil, fmt.Errorf("failed to decode manifest document %d: %w", i, err)
		}

		raw, err := yaml.Marshal(&node)
		if err != nil {
			return nil, fmt.Errorf("failed to re-encode manifest document %d: %w", i, err)
		}

		manifests = append(manifests, &Manifest{
			Name:        header.Metadata.Name,
			Kind:        header.Kind,
			Annotations: header.Metadata.Annotations,
			Raw:         raw,
		})
	}

	return manifests, nil
}

// DecodeFiles parses several rendered manifest files, in the given order.
// The caller supplies one already-flattened file list covering the
// top-level package and all sub-packages; no per-package reordering
// happens here.
func DecodeFiles(paths []string) ([]*Manifest, error) {
	var manifests []*Manifest
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest file %s: %w", path, err)
		}
		ms, err := Decode(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		manifests = append(manifests, ms...)
	}
	return manifests, nil
}
