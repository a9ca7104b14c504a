// Package corpus defines the document model shared by ingestion and
// retrieval, and loaders for the handoff formats produced by the
// content scrapers.
package corpus

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// SourceKind identifies where a document was scraped from.
type SourceKind string

const (
	SourceMedium   SourceKind = "medium"
	SourceLinkedIn SourceKind = "linkedin"
	SourceGitHub   SourceKind = "github"
	SourceResume   SourceKind = "resume"
)

// Document is one unit of scraped content. RawText is plain UTF-8 with
// markup already stripped by the scraper. Documents are immutable once
// ingested; re-ingesting the same origin produces the same ID.
type Document struct {
	ID        string
	Source    SourceKind
	Title     string
	URL       string
	RawText   string
	FetchedAt time.Time
}

// ContentHash returns the sha256 hex digest of the raw text, used to
// skip re-embedding documents whose content has not changed.
func (d Document) ContentHash() string {
	sum := sha256.Sum256([]byte(d.RawText))
	return hex.EncodeToString(sum[:])
}

// DocumentID derives a stable identifier from a document's origin.
// The same origin always maps to the same UUID, which is what makes
// re-ingestion overwrite instead of duplicate.
func DocumentID(origin string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(origin)).String()
}
