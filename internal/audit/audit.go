// Package audit provides the chat audit log the learning pipeline reads
// from. Entries are recorded by the ingestion surfaces and returned newest
// first.
package audit

import (
	"context"
	"time"
)

// Entry is one recorded chat message.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Sender    string    `json:"sender"`
	Chat      string    `json:"chat,omitempty"`
	Text      string    `json:"text"`
}

// Source returns up to limit of the most recent entries, newest first.
type Source interface {
	GetAuditLog(ctx context.Context, limit int) ([]Entry, error)
}

// Recorder appends entries to the log.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Log is a Source that can also record.
type Log interface {
	Source
	Recorder
}
