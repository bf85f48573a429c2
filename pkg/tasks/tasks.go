// Package tasks defines the catalog events exchanged over Kafka.
package tasks

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventClipCreated     = "clip.created"
	EventClipRenamed     = "clip.renamed"
	EventClipDeleted     = "clip.deleted"
	EventScheduleCreated = "schedule.created"
)

const (
	DocumentKindClip     = "clip"
	DocumentKindSchedule = "schedule"
)

// CatalogDocument is the searchable projection of an audio clip or schedule record.
type CatalogDocument struct {
	Kind        string `json:"kind"`
	Program     string `json:"program,omitempty"`
	FileName    string `json:"fileName,omitempty"`
	Description string `json:"description,omitempty"`
	Channel     string `json:"channel"`
	Region      string `json:"region,omitempty"`
	Date        string `json:"date"`
	Start       string `json:"start,omitempty"`
	End         string `json:"end,omitempty"`
	ContentType string `json:"type,omitempty"`
	URL         string `json:"url,omitempty"`
}

// CatalogEvent announces a committed write. Document is nil for deletions.
type CatalogEvent struct {
	EventID    string           `json:"event_id"`
	Kind       string           `json:"kind"`
	DocumentID string           `json:"document_id"`
	Document   *CatalogDocument `json:"document,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}

// NewCatalogEvent stamps an event with a fresh id and the current time.
func NewCatalogEvent(kind, documentID string, doc *CatalogDocument) CatalogEvent {
	return CatalogEvent{
		EventID:    uuid.NewString(),
		Kind:       kind,
		DocumentID: documentID,
		Document:   doc,
		OccurredAt: time.Now().UTC(),
	}
}
