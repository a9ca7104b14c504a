package corpus

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDocumentIDStable(t *testing.T) {
	origin := "https://medium.com/@someone/a-post"
	if DocumentID(origin) != DocumentID(origin) {
		t.Fatal("same origin must map to the same ID")
	}
	if DocumentID(origin) == DocumentID(origin+"-other") {
		t.Fatal("different origins must map to different IDs")
	}
}

func TestContentHashTracksText(t *testing.T) {
	a := Document{RawText: "some text"}
	b := Document{RawText: "some text"}
	c := Document{RawText: "other text"}

	if a.ContentHash() != b.ContentHash() {
		t.Fatal("same text must hash identically")
	}
	if a.ContentHash() == c.ContentHash() {
		t.Fatal("different text must hash differently")
	}
}

func TestLoadJSONFileArray(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "medium.json")
	payload := `[
		{"title": "First Post", "content": "body one", "url": "https://example.com/1", "source": "medium", "published_date": "2024-06-01T10:00:00Z"},
		{"title": "Profile", "content": "body two", "url": "https://example.com/2", "source": "linkedin"}
	]`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	docs, err := LoadJSONFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}

	if docs[0].Title != "First Post" || docs[0].Source != SourceMedium {
		t.Fatalf("unexpected first document: %+v", docs[0])
	}
	if docs[0].ID != DocumentID("https://example.com/1") {
		t.Fatal("document ID must derive from the URL")
	}
	if docs[0].FetchedAt.Year() != 2024 {
		t.Fatalf("published date not parsed: %v", docs[0].FetchedAt)
	}
	if docs[1].Source != SourceLinkedIn {
		t.Fatalf("unexpected source kind: %s", docs[1].Source)
	}
}

func TestLoadJSONFileSingleObject(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "one.json")
	payload := `{"title": "Solo", "content": "body", "url": "https://example.com/solo", "source": "medium"}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	docs, err := LoadJSONFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(docs) != 1 || docs[0].Title != "Solo" {
		t.Fatalf("unexpected documents: %+v", docs)
	}
}

func TestLoadJSONFileRejectsEmptyContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte(`[{"title": "No Body", "content": "  "}]`), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := LoadJSONFile(path); err == nil {
		t.Fatal("expected error for document without content")
	}
}

func TestLoadDirSkipsUnsupportedFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	payload := `[{"title": "Post", "content": "body", "url": "https://example.com/p", "source": "medium"}]`
	if err := os.WriteFile(filepath.Join(dir, "dump.json"), []byte(payload), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	docs, failures, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("load dir: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("expected no load failures, got %v", failures)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 document, got %d", len(docs))
	}
}

func TestLoadDirContinuesPastMalformedFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{"title": `), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	payload := `[{"title": "Post", "content": "body", "url": "https://example.com/p", "source": "medium"}]`
	if err := os.WriteFile(filepath.Join(dir, "good.json"), []byte(payload), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	docs, failures, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("one malformed file must not abort the walk: %v", err)
	}
	if len(docs) != 1 || docs[0].Title != "Post" {
		t.Fatalf("healthy file should still load, got %+v", docs)
	}
	if len(failures) != 1 || filepath.Base(failures[0].Path) != "broken.json" {
		t.Fatalf("expected broken.json reported, got %v", failures)
	}
}

func TestLoadDirMissingDirectory(t *testing.T) {
	if _, _, err := LoadDir(filepath.Join(t.TempDir(), "does-not-exist")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
