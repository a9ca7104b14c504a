package corpus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
)

// documentRecord is the JSON shape the scrapers write, one array per
// source dump.
type documentRecord struct {
	Title         string `json:"title"`
	Content       string `json:"content"`
	URL           string `json:"url"`
	Source        string `json:"source"`
	PublishedDate string `json:"published_date"`
}

// LoadFailure records a file that could not be loaded from the corpus
// directory.
type LoadFailure struct {
	Path string
	Err  error
}

// LoadDir walks dir and loads every scraper dump (*.json) and resume
// PDF (*.pdf) into Documents. Unsupported files are skipped. A file
// that fails to parse is reported as a LoadFailure and the walk
// continues, so one malformed dump never blocks the rest of the
// corpus.
func LoadDir(dir string) ([]Document, []LoadFailure, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, nil, fmt.Errorf("corpus directory: %w", err)
	}

	var (
		documents []Document
		failures  []LoadFailure
	)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(d.Name())) {
		case ".json":
			docs, err := LoadJSONFile(path)
			if err != nil {
				failures = append(failures, LoadFailure{Path: path, Err: err})
				return nil
			}
			documents = append(documents, docs...)
		case ".pdf":
			doc, err := LoadResumePDF(path)
			if err != nil {
				failures = append(failures, LoadFailure{Path: path, Err: err})
				return nil
			}
			documents = append(documents, doc)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return documents, failures, nil
}

// LoadJSONFile reads one scraper dump. The file holds either a single
// document object or an array of them.
func LoadJSONFile(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var records []documentRecord
	if err := json.Unmarshal(data, &records); err != nil {
		var single documentRecord
		if singleErr := json.Unmarshal(data, &single); singleErr != nil {
			return nil, fmt.Errorf("decode documents: %w", err)
		}
		records = []documentRecord{single}
	}

	documents := make([]Document, 0, len(records))
	for i, rec := range records {
		doc, err := recordToDocument(rec, path, i)
		if err != nil {
			return nil, err
		}
		documents = append(documents, doc)
	}
	return documents, nil
}

func recordToDocument(rec documentRecord, path string, position int) (Document, error) {
	if strings.TrimSpace(rec.Content) == "" {
		return Document{}, fmt.Errorf("document %d in %s has no content", position, path)
	}

	origin := rec.URL
	if origin == "" {
		origin = fmt.Sprintf("file://%s#%d", filepath.ToSlash(path), position)
	}

	fetched := time.Now().UTC()
	if rec.PublishedDate != "" {
		if parsed, err := time.Parse(time.RFC3339, rec.PublishedDate); err == nil {
			fetched = parsed
		}
	}

	source := SourceKind(rec.Source)
	if source == "" {
		source = SourceMedium
	}

	return Document{
		ID:        DocumentID(origin),
		Source:    source,
		Title:     rec.Title,
		URL:       rec.URL,
		RawText:   rec.Content,
		FetchedAt: fetched,
	}, nil
}

// LoadResumePDF extracts plain text from a resume PDF and wraps it as
// a single resume-kind document.
func LoadResumePDF(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read pdf: %w", err)
	}

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Document{}, fmt.Errorf("open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return Document{}, fmt.Errorf("extract pdf text: %w", err)
	}

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, plain); err != nil {
		return Document{}, fmt.Errorf("read pdf text: %w", err)
	}

	text := normalizeWhitespace(buf.String())
	if text == "" {
		return Document{}, fmt.Errorf("no text extracted from %s", path)
	}

	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Document{
		ID:        DocumentID("file://" + filepath.ToSlash(path)),
		Source:    SourceResume,
		Title:     title,
		RawText:   text,
		FetchedAt: time.Now().UTC(),
	}, nil
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
