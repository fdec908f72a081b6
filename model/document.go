package model

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
)

// Document is the input to ingest_document: raw text plus the identifiers
// the Ingestor needs to scope chunk/section ids and the ingest log.
type Document struct {
	DocID      string
	Namespace  string
	Title      string
	Source     string
	Content    string
	Properties Properties
}

// ContentHash is the ingest-log dedup key: a document re-ingested with
// identical content must not flip its ingest-log status back to stale.
func (d Document) ContentHash() string {
	sum := sha256.Sum256([]byte(d.Content))
	return hex.EncodeToString(sum[:])
}

// NewDocumentFromFile reads a file and builds a Document whose title
// defaults to the filename and source to the file path.
func NewDocumentFromFile(docID, namespace, filePath string, properties Properties) (*Document, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	filename := filepath.Base(filePath)
	title := filename[:len(filename)-len(filepath.Ext(filename))]
	if title == "" {
		title = filename
	}

	return &Document{
		DocID:      docID,
		Namespace:  namespace,
		Title:      title,
		Source:     filePath,
		Content:    string(content),
		Properties: properties,
	}, nil
}
