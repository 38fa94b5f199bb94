package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/fme/internal/noteservice"
	"github.com/starford/fme/internal/transform"
)

// Handler holds API route handlers.
type Handler struct {
	svc *noteservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *noteservice.Service) *Handler {
	return &Handler{svc: svc}
}

// notePath extracts the note path from the URL (everything after /api/notes/).
// Supports encoded slashes (e.g. topics%2Fnote.md).
func notePath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListOperations handles GET /api/operations.
//
//	@Summary	List the supported frontmatter operations
//	@Tags		operations
//	@Produce	json
//	@Success	200	{object}	OperationsResponse
//	@Security	BearerAuth
//	@Router		/operations [get]
func (h *Handler) ListOperations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, OperationsResponse{Operations: transform.Describe()})
}

// Preview handles POST /api/preview.
//
//	@Summary	Apply an operation to a document without writing anything
//	@Tags		operations
//	@Accept		json
//	@Produce	json
//	@Param		body	body		PreviewRequest	true	"Operation and document"
//	@Success	200		{object}	PreviewResponse
//	@Failure	400		{object}	errResponse
//	@Failure	422		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/preview [post]
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if !decodeBody(w, r, &req) {
		return
	}
	op, err := transform.New(req.Op, req.Args)
	if err != nil {
		writeError(w, "preview", err)
		return
	}
	out, changed, err := noteservice.Preview(op, req.Content)
	if err != nil {
		writeError(w, "preview", err)
		return
	}
	writeJSON(w, http.StatusOK, PreviewResponse{Content: out, Changed: changed})
}

// Apply handles POST /api/apply.
//
//	@Summary	Apply an operation to every note in the served directory
//	@Tags		operations
//	@Accept		json
//	@Produce	json
//	@Param		body	body		ApplyRequest	true	"Operation and scope"
//	@Success	200		{object}	ApplyResponse
//	@Failure	400		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/apply [post]
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	var req ApplyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	op, err := transform.New(req.Op, req.Args)
	if err != nil {
		writeError(w, "apply", err)
		return
	}
	report, err := h.svc.Apply(r.Context(), noteservice.Request{
		Op:        op,
		Recursive: req.Recursive,
		DryRun:    req.DryRun,
	})
	if err != nil {
		writeError(w, "apply", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListNotes handles GET /api/notes.
//
//	@Summary	List the notes an operation would visit
//	@Tags		notes
//	@Produce	json
//	@Param		recursive	query		bool	false	"Include subdirectories"
//	@Success	200			{object}	NoteListResponse
//	@Security	BearerAuth
//	@Router		/notes [get]
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	recursive, _ := strconv.ParseBool(r.URL.Query().Get("recursive"))
	notes, err := h.svc.List(r.Context(), recursive)
	if err != nil {
		writeError(w, "list notes", err)
		return
	}
	writeJSON(w, http.StatusOK, NoteListResponse{Notes: nonNil(notes), Total: len(notes)})
}

// GetFrontmatter handles GET /api/notes/*.
//
//	@Summary	Get the decoded frontmatter of a note
//	@Tags		notes
//	@Produce	json
//	@Param		path	path		string	true	"Note path"
//	@Success	200		{object}	noteservice.NoteFrontmatter
//	@Failure	404		{object}	errResponse
//	@Failure	422		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/notes/{path} [get]
func (h *Handler) GetFrontmatter(w http.ResponseWriter, r *http.Request) {
	path := notePath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return
	}
	fm, err := h.svc.Frontmatter(r.Context(), path)
	if err != nil {
		writeError(w, "get frontmatter", err)
		return
	}
	writeJSON(w, http.StatusOK, fm)
}

// ListRuns handles GET /api/runs.
//
//	@Summary	List recent journal runs, newest first
//	@Tags		runs
//	@Produce	json
//	@Param		limit	query		int	false	"Maximum number of runs"
//	@Success	200		{object}	RunListResponse
//	@Failure	501		{object}	errResponse
//	@Security	BearerAuth
//	@Router		/runs [get]
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.svc.Runs(r.Context(), limit)
	if err != nil {
		writeError(w, "list runs", err)
		return
	}
	writeJSON(w, http.StatusOK, RunListResponse{Runs: runs})
}

// GetRun handles GET /api/runs/{id}.
//
//	@Summary	Get a journal run and the files it changed
//	@Tags		runs
//	@Produce	json
//	@Param		id	path		string	true	"Run ID"
//	@Success	200	{object}	noteservice.RunDetail
//	@Failure	404	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/runs/{id} [get]
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.svc.Run(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get run", err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// UndoRun handles POST /api/runs/{id}/undo.
//
//	@Summary	Restore the files changed by a run
//	@Tags		runs
//	@Produce	json
//	@Param		id	path		string	true	"Run ID"
//	@Success	200	{object}	noteservice.UndoReport
//	@Failure	404	{object}	errResponse
//	@Failure	409	{object}	errResponse
//	@Security	BearerAuth
//	@Router		/runs/{id}/undo [post]
func (h *Handler) UndoRun(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Undo(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "undo run", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
