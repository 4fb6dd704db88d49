package descriptor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	semver "github.com/Masterminds/semver/v3"
)

func TestParse_JSON(t *testing.T) {
	d, err := Parse("package.json", []byte(`{
  "name": "org.pinf.lib",
  "version": " 0.1.4 ",
  "keywords": ["pinf", "lib"]
}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Name != "org.pinf.lib" {
		t.Errorf("name = %q", d.Name)
	}
	if d.Version != "0.1.4" {
		t.Errorf("version = %q, want trimmed 0.1.4", d.Version)
	}
	if len(d.Keywords) != 2 {
		t.Errorf("keywords = %v", d.Keywords)
	}
}

func TestParse_YAML(t *testing.T) {
	d, err := Parse("package.yaml", []byte("name: org.pinf.lib\nversion: 1.2.0\nmain: lib/main.js\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Main != "lib/main.js" || d.Version != "1.2.0" {
		t.Errorf("got %+v", d)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse("package.json", []byte("{not json")); err == nil {
		t.Error("expected error for malformed JSON")
	}
	if _, err := Parse("package.toml", []byte("")); err == nil {
		t.Error("expected error for unsupported file")
	}
}

func TestLoad_PrefersJSON(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"name":"a","version":"1.0.0"}`), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "package.yaml"), []byte("name: b\nversion: 2.0.0\n"), 0o644)

	d, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.Name != "a" {
		t.Errorf("name = %q, want a", d.Name)
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(t.TempDir())
	if !errors.Is(err, ErrMissing) {
		t.Errorf("err = %v, want ErrMissing", err)
	}
}

func TestSatisfies(t *testing.T) {
	exact, _ := semver.NewConstraint("0.1.4")
	caret, _ := semver.NewConstraint("^0.1")
	other, _ := semver.NewConstraint("0.2.0")

	d := &Descriptor{Name: "org.pinf.lib", Version: "0.1.4"}
	if !d.Satisfies(exact) || !d.Satisfies(caret) {
		t.Error("0.1.4 should satisfy 0.1.4 and ^0.1")
	}
	if d.Satisfies(other) {
		t.Error("0.1.4 should not satisfy 0.2.0")
	}

	unversioned := &Descriptor{Name: "x"}
	if unversioned.Satisfies(caret) {
		t.Error("a descriptor without a version never satisfies a constraint")
	}
}

func TestIsDescriptor(t *testing.T) {
	if !IsDescriptor("package.json") || !IsDescriptor("package.yaml") {
		t.Error("expected descriptor names to be recognised")
	}
	if IsDescriptor("index.js") {
		t.Error("index.js is not a descriptor")
	}
}
