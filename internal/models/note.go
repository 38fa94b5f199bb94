// Package models defines the domain types shared by fme packages.
package models

import "time"

// NoteMetadata describes one markdown file found under a directory.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Run is one application of an operation to a directory.
type Run struct {
	ID         string     `json:"id"`
	Operation  string     `json:"operation"`
	Args       []string   `json:"args"`
	Dir        string     `json:"dir"`
	Recursive  bool       `json:"recursive"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Updated    int        `json:"updated"`
	Failed     int        `json:"failed"`
	UndoneAt   *time.Time `json:"undone_at,omitempty"`
}

// Change records one file rewritten during a run.
type Change struct {
	RunID          string `json:"run_id"`
	Path           string `json:"path"`
	BeforeChecksum string `json:"before_checksum"`
	AfterChecksum  string `json:"after_checksum"`
	Before         []byte `json:"-"`
}
