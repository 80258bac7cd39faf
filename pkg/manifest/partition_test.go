package manifest

import (
	"strings"
	"testing"

	"github.com/hookmill/hookmill/pkg/lifecycle"
)

func TestPartitionSplitsHooksFromResources(t *testing.T) {
	manifests := []*Manifest{
		annotated("app-config", "ConfigMap", ""),
		annotated("db-migrate", "Job", "pre-upgrade"),
		annotated("app", "Service", ""),
		annotated("smoke-test", "Job", "post-upgrade"),
	}

	parts, err := Partition(manifests, nil)
	if err != nil {
		t.Fatalf("Expected partition to succeed, got %v", err)
	}

	if len(parts.Resources) != 2 {
		t.Fatalf("Expected 2 ordinary resources, got %d", len(parts.Resources))
	}
	if parts.Resources[0].Name != "app-config" || parts.Resources[1].Name != "app" {
		t.Errorf("Expected resources in input order, got [%s %s]",
			parts.Resources[0].Name, parts.Resources[1].Name)
	}

	pre := parts.Hooks.Get(lifecycle.PhasePreUpgrade)
	if len(pre) != 1 || pre[0].Name != "db-migrate" {
		t.Errorf("Expected db-migrate in pre-upgrade, got %v", pre)
	}
	post := parts.Hooks.Get(lifecycle.PhasePostUpgrade)
	if len(post) != 1 || post[0].Name != "smoke-test" {
		t.Errorf("Expected smoke-test in post-upgrade, got %v", post)
	}
	if len(parts.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", parts.Warnings)
	}
}

func TestPartitionMultiPhaseManifestAppearsInEveryBucket(t *testing.T) {
	manifests := []*Manifest{
		annotated("backup", "Job", "pre-upgrade,pre-rollback"),
	}

	parts, err := Partition(manifests, nil)
	if err != nil {
		t.Fatalf("Expected partition to succeed, got %v", err)
	}

	upgrade := parts.Hooks.Get(lifecycle.PhasePreUpgrade)
	rollback := parts.Hooks.Get(lifecycle.PhasePreRollback)
	if len(upgrade) != 1 || len(rollback) != 1 {
		t.Fatalf("Expected backup in both buckets, got %d and %d", len(upgrade), len(rollback))
	}
	if upgrade[0] != rollback[0] {
		t.Error("Expected both buckets to hold the same hook")
	}
	if len(parts.Resources) != 0 {
		t.Errorf("Expected no ordinary resources, got %d", len(parts.Resources))
	}
}

func TestPartitionPermissiveWarningsKeepValidBindings(t *testing.T) {
	manifests := []*Manifest{
		annotated("mixed", "Job", "pre-install,mid-install"),
	}

	parts, err := Partition(manifests, &Extractor{})
	if err != nil {
		t.Fatalf("Expected permissive partition to succeed, got %v", err)
	}

	if len(parts.Hooks.Get(lifecycle.PhasePreInstall)) != 1 {
		t.Error("Expected the recognized phase to still bind")
	}
	if len(parts.Warnings) != 1 {
		t.Fatalf("Expected 1 warning, got %v", parts.Warnings)
	}
	if !strings.Contains(parts.Warnings[0], "mid-install") {
		t.Errorf("Expected warning to name the unrecognized phase, got %q", parts.Warnings[0])
	}
}

func TestPartitionStrictFailsOnUnrecognized(t *testing.T) {
	manifests := []*Manifest{
		annotated("bad", "Job", "mid-install"),
	}

	_, err := Partition(manifests, &Extractor{Strict: true})
	if err == nil {
		t.Fatal("Expected strict partition to fail")
	}
}

// Two manifests, one annotated for pre-install and post-delete, one
// unannotated: the annotated one executes around the operations, the
// other stays an ordinary tracked resource.
func TestPartitionAnnotatedAndPlainPair(t *testing.T) {
	manifests := []*Manifest{
		annotated("m1", "Job", "pre-install,post-delete"),
		annotated("m2", "ConfigMap", ""),
	}

	parts, err := Partition(manifests, nil)
	if err != nil {
		t.Fatalf("Expected partition to succeed, got %v", err)
	}

	if len(parts.Hooks.Get(lifecycle.PhasePreInstall)) != 1 {
		t.Error("Expected m1 in the pre-install bucket")
	}
	if len(parts.Hooks.Get(lifecycle.PhasePostDelete)) != 1 {
		t.Error("Expected m1 in the post-delete bucket")
	}
	if len(parts.Resources) != 1 || parts.Resources[0].Name != "m2" {
		t.Errorf("Expected m2 as the only ordinary resource, got %v", parts.Resources)
	}

	hook := parts.Hooks.Get(lifecycle.PhasePreInstall)[0]
	if hook.Kind != "Job" {
		t.Errorf("Expected hook kind Job, got %q", hook.Kind)
	}
	if string(hook.Manifest) != "m1" {
		t.Errorf("Expected hook to carry the raw manifest, got %q", hook.Manifest)
	}
}
