package manifest

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestClasspathEntries(t *testing.T) {
	root := t.TempDir()
	app := filepath.Join(root, "app")
	util := filepath.Join(root, "util")
	jar := filepath.Join(root, "vendor", "codec.jar")

	writeManifest(t, app, `
[classpath]
entries = ["classes"]

[dependencies]
util = { path = "../util" }
codec = { path = "../vendor/codec.jar" }
`)
	writeManifest(t, util, `
[classpath]
entries = ["out", "extra"]

[dependencies]
app = { path = "../app" }
codec = { path = "../vendor/codec.jar" }
`)
	if err := os.MkdirAll(filepath.Dir(jar), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(jar, []byte("PK"), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(app)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	deps, err := m.Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	var names []string
	for _, d := range deps {
		names = append(names, d.Name)
	}
	if !reflect.DeepEqual(names, []string{"codec", "util"}) {
		t.Errorf("resolved %v, want [codec util]", names)
	}
	if deps[0].Manifest != nil {
		t.Errorf("jar dependency has a manifest")
	}

	entries, err := m.ClasspathEntries()
	if err != nil {
		t.Fatalf("ClasspathEntries failed: %v", err)
	}
	want := []string{
		filepath.Join(app, "classes"),
		jar,
		filepath.Join(util, "out"),
		filepath.Join(util, "extra"),
	}
	if !reflect.DeepEqual(entries, want) {
		t.Errorf("entries = %v, want %v", entries, want)
	}
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing path", "[dependencies]\nghost = { path = \"../ghost\" }"},
		{"no path", "[dependencies]\nempty = {}"},
	}
	for _, tt := range tests {
		dir := filepath.Join(t.TempDir(), "p")
		writeManifest(t, dir, tt.content)
		m, err := Load(dir)
		if err != nil {
			t.Fatalf("%s: Load failed: %v", tt.name, err)
		}
		if _, err := m.Resolve(); err == nil {
			t.Errorf("%s: Resolve succeeded", tt.name)
		}
	}
}
