package handlers

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestRootCommands(t *testing.T) {
	root := NewRootCmd()
	want := []string{"cache", "generate", "migrate", "scrape", "serve", "sweep", "types"}

	got := map[string]bool{}
	for _, c := range root.Commands() {
		got[c.Name()] = true
	}
	for _, name := range want {
		if !got[name] {
			t.Errorf("Missing subcommand %q", name)
		}
	}
}

func TestCollectSources(t *testing.T) {
	dir := t.TempDir()
	notes := filepath.Join(dir, "notes.md")
	if err := os.WriteFile(notes, []byte("Anteckningar"), 0644); err != nil {
		t.Fatal(err)
	}
	links := filepath.Join(dir, "links.md")
	if err := os.WriteFile(links, []byte("- [a](https://example.com/a)\n- https://example.com/b\n"), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := collectSources([]string{"text"}, []string{notes}, links)
	if err != nil {
		t.Fatalf("collectSources() error = %v", err)
	}
	want := []string{"text", "Anteckningar", "https://example.com/a", "https://example.com/b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("collectSources() = %v, want %v", got, want)
	}

	if _, err := collectSources(nil, []string{filepath.Join(dir, "missing.txt")}, ""); err == nil {
		t.Error("Expected error for missing file")
	}
}
