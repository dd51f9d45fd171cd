package skill

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSkill(t *testing.T, root, name, frontmatter, body string) {
	t.Helper()
	dir := filepath.Join(root, ".claude", "skills", name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := "---\n" + frontmatter + "---\n" + body
	if err := os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(content), 0o644); err != nil {
		t.Fatalf("write skill: %v", err)
	}
}

func TestLoadFromFS(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "code-review",
		"name: code-review\ndescription: Review changed files for defects\n",
		"Check the diff before approving.\n")
	writeSkill(t, root, "cert-audit",
		"name: cert-audit\ndescription: Inspect collected certificates\nallowed-tools: certcollect\n",
		"List expirations first.\n")

	registry, errs := LoadFromFS(LoaderOptions{ProjectRoot: root})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	defs := registry.List()
	if len(defs) != 2 {
		t.Fatalf("expected 2 skills, got %d", len(defs))
	}
	if defs[0].Name != "cert-audit" || defs[1].Name != "code-review" {
		t.Fatalf("unexpected names: %v", defs)
	}
	if defs[0].Metadata["allowed-tools"] != "certcollect" {
		t.Fatalf("allowed-tools not propagated: %v", defs[0].Metadata)
	}

	out, err := registry.Invoke(context.Background(), "code-review", nil)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	res, ok := out.(Result)
	if !ok {
		t.Fatalf("output type %T", out)
	}
	if !strings.Contains(res.Body, "Check the diff") {
		t.Fatalf("body = %q", res.Body)
	}
}

func TestLoadFromFSStripsByteOrderMark(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, ".claude", "skills", "bom-skill")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := "\uFEFF---\nname: bom-skill\ndescription: saved by a BOM-happy editor\n---\nbody text\n"
	if err := os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(content), 0o644); err != nil {
		t.Fatalf("write skill: %v", err)
	}

	registry, errs := LoadFromFS(LoaderOptions{ProjectRoot: root})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if !registry.Has("bom-skill") {
		t.Fatal("BOM-prefixed skill should load")
	}
	out, err := registry.Invoke(context.Background(), "bom-skill", nil)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if res := out.(Result); !strings.Contains(res.Body, "body text") {
		t.Fatalf("body = %q", res.Body)
	}
}

func TestLoadFromFSMissingDirIsEmpty(t *testing.T) {
	registry, errs := LoadFromFS(LoaderOptions{ProjectRoot: t.TempDir()})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(registry.List()) != 0 {
		t.Fatal("expected empty registry")
	}
}

func TestLoadFromFSRejectsNameMismatch(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "dir-name",
		"name: other-name\ndescription: mismatch\n",
		"body\n")

	registry, errs := LoadFromFS(LoaderOptions{ProjectRoot: root})
	if len(errs) == 0 {
		t.Fatal("expected mismatch error")
	}
	if registry.Has("other-name") {
		t.Fatal("mismatched skill should not register")
	}
}

func TestLoadFromFSAggregatesBrokenFiles(t *testing.T) {
	root := t.TempDir()
	writeSkill(t, root, "good-skill",
		"name: good-skill\ndescription: fine\n",
		"ok\n")
	// Missing frontmatter entirely.
	dir := filepath.Join(root, ".claude", "skills", "broken")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte("no frontmatter"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	registry, errs := LoadFromFS(LoaderOptions{ProjectRoot: root})
	if len(errs) == 0 {
		t.Fatal("expected error for broken file")
	}
	if !registry.Has("good-skill") {
		t.Fatal("good skill should still load")
	}
}

func TestValidateMetadata(t *testing.T) {
	cases := []struct {
		name string
		meta FileMetadata
		ok   bool
	}{
		{"valid", FileMetadata{Name: "a-skill", Description: "d"}, true},
		{"empty name", FileMetadata{Description: "d"}, false},
		{"uppercase", FileMetadata{Name: "Bad", Description: "d"}, false},
		{"no description", FileMetadata{Name: "ok"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateMetadata(tc.meta)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
