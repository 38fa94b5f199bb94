package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/fme/internal/models"
	"github.com/starford/fme/internal/noteservice"
	"github.com/starford/fme/internal/transform"
)

// PreviewRequest is the request body for POST /api/preview.
type PreviewRequest struct {
	Op      string   `json:"op" example:"add"`
	Args    []string `json:"args" example:"go,notes"`
	Content string   `json:"content" example:"---\ntags:\n  - go\n---\nbody"`
}

// Validate checks the operation name; argument counts are checked by transform.New.
func (r PreviewRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Op, validation.Required, validation.In(operationNames()...)),
	)
}

// PreviewResponse is the transformed document.
type PreviewResponse struct {
	Content string `json:"content"`
	Changed bool   `json:"changed"`
}

// ApplyRequest is the request body for POST /api/apply.
type ApplyRequest struct {
	Op        string   `json:"op" example:"remove"`
	Args      []string `json:"args" example:"draft"`
	Recursive bool     `json:"recursive"`
	DryRun    bool     `json:"dry_run"`
}

// Validate checks the operation name.
func (r ApplyRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Op, validation.Required, validation.In(operationNames()...)),
	)
}

// ApplyResponse is the batch report (aliased from the domain layer).
type ApplyResponse = noteservice.Report

// NoteListResponse wraps the note listing.
type NoteListResponse struct {
	Notes []models.NoteMetadata `json:"notes"`
	Total int                   `json:"total" example:"42"`
}

// RunListResponse wraps the journal listing.
type RunListResponse struct {
	Runs []models.Run `json:"runs"`
}

// OperationsResponse lists the supported operations.
type OperationsResponse struct {
	Operations []transform.Info `json:"operations"`
}

func operationNames() []any {
	names := transform.Names()
	out := make([]any, len(names))
	for i, n := range names {
		out[i] = n
	}
	return out
}
