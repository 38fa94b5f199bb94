// Package noteservice applies frontmatter operations to a directory of notes,
// reports what changed and keeps the change journal up to date.
package noteservice

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/starford/fme/internal/checksum"
	"github.com/starford/fme/internal/journal"
	"github.com/starford/fme/internal/models"
	"github.com/starford/fme/internal/storage"
	"github.com/starford/fme/internal/transform"
)

// Request describes one batch run.
type Request struct {
	Op        transform.Operation
	Recursive bool
	DryRun    bool
}

// FileError is a per-file failure; it never aborts the batch.
type FileError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Report summarises a batch run. Paths are relative to the service root.
type Report struct {
	RunID   string      `json:"run_id,omitempty"`
	DryRun  bool        `json:"dry_run,omitempty"`
	Updated []string    `json:"updated"`
	Errors  []FileError `json:"errors"`
}

// UpdateHook is called after a file was rewritten. kind is "updated" or "restored".
type UpdateHook func(kind, path string)

// RunHook is called with the report of every finished batch run.
type RunHook func(r *Report)

// Service coordinates storage, transforms and the journal.
type Service struct {
	store   storage.Provider
	journal journal.Journal
	logger  *slog.Logger
	out     io.Writer
	label   string
	workers int
	hook    UpdateHook
	runHook RunHook

	outMu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithJournal records rewritten files in j. A nil journal disables recording.
func WithJournal(j journal.Journal) Option {
	return func(s *Service) { s.journal = j }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithOutput sets where the per-file report lines are printed.
func WithOutput(w io.Writer) Option {
	return func(s *Service) { s.out = w }
}

// WithDisplayRoot sets the directory prefix used in report lines.
func WithDisplayRoot(dir string) Option {
	return func(s *Service) { s.label = dir }
}

// WithWorkers sets how many files are processed concurrently.
func WithWorkers(n int) Option {
	return func(s *Service) { s.workers = n }
}

// WithUpdateHook registers a callback for rewritten files.
func WithUpdateHook(h UpdateHook) Option {
	return func(s *Service) { s.hook = h }
}

// WithRunHook registers a callback for finished batch runs.
func WithRunHook(h RunHook) Option {
	return func(s *Service) { s.runHook = h }
}

// NewService creates a new note service over store.
func NewService(store storage.Provider, opts ...Option) *Service {
	s := &Service{
		store:   store,
		logger:  slog.Default(),
		out:     io.Discard,
		label:   store.Root(),
		workers: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers < 1 {
		s.workers = 1
	}
	return s
}

// Root returns the directory the service operates on.
func (s *Service) Root() string {
	return s.store.Root()
}

// JournalEnabled reports whether runs are recorded.
func (s *Service) JournalEnabled() bool {
	return s.journal != nil
}

// List returns the notes the service would visit.
func (s *Service) List(_ context.Context, recursive bool) ([]models.NoteMetadata, error) {
	return s.store.List("", recursive)
}

// Read returns the raw content of a note.
func (s *Service) Read(_ context.Context, path string) ([]byte, error) {
	return s.store.Read(path)
}

// Apply runs req.Op over every note. Only listing the directory can fail the
// whole run; file failures are reported and skipped. Cancelling ctx stops the
// run before the next file is started.
func (s *Service) Apply(ctx context.Context, req Request) (*Report, error) {
	metas, err := s.store.List("", req.Recursive)
	if err != nil {
		return nil, err
	}

	runID := s.beginRun(req)
	report := &Report{RunID: runID, DryRun: req.DryRun, Updated: []string{}, Errors: []FileError{}}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, m := range metas {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			changed, err := s.applyFile(runID, m.Path, req)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Errors = append(report.Errors, FileError{Path: m.Path, Error: err.Error()})
			case changed:
				report.Updated = append(report.Updated, m.Path)
			}
			return nil
		})
	}
	_ = g.Wait()

	slices.Sort(report.Updated)
	slices.SortFunc(report.Errors, func(a, b FileError) int { return strings.Compare(a.Path, b.Path) })
	s.finishRun(runID, len(report.Updated), len(report.Errors))

	s.logger.Info("run finished",
		slog.String("operation", req.Op.String()),
		slog.String("root", s.store.Root()),
		slog.Bool("dry_run", req.DryRun),
		slog.Int("files", len(metas)),
		slog.Int("updated", len(report.Updated)),
		slog.Int("failed", len(report.Errors)))
	if s.runHook != nil {
		s.runHook(report)
	}

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (s *Service) applyFile(runID, path string, req Request) (bool, error) {
	changed, err := s.transformFile(runID, path, req)
	switch {
	case err != nil:
		s.logger.Warn("apply: file failed", slog.String("path", path), slog.String("error", err.Error()))
		s.printf("Error processing %s: %v\n", s.display(path), err)
	case changed && req.DryRun:
		s.printf("Would update: %s\n", s.display(path))
	case changed:
		s.logger.Debug("apply: updated", slog.String("path", path))
		s.printf("Updated: %s\n", s.display(path))
		if s.hook != nil {
			s.hook("updated", path)
		}
	}
	return changed, err
}

func (s *Service) transformFile(runID, path string, req Request) (bool, error) {
	data, err := s.store.Read(path)
	if err != nil {
		return false, err
	}
	before := string(data)
	after, err := req.Op.Apply(before)
	if err != nil {
		return false, err
	}
	if after == before {
		return false, nil
	}
	if req.DryRun {
		return true, nil
	}
	if err := s.store.Write(path, []byte(after)); err != nil {
		return false, err
	}
	if runID != "" {
		err := s.journal.RecordChange(models.Change{
			RunID:          runID,
			Path:           path,
			BeforeChecksum: checksum.Sum(data),
			AfterChecksum:  checksum.Sum([]byte(after)),
			Before:         data,
		})
		if err != nil {
			s.logger.Warn("journal: record failed", slog.String("path", path), slog.String("error", err.Error()))
		}
	}
	return true, nil
}

// beginRun opens a journal run, or returns "" when nothing is recorded.
func (s *Service) beginRun(req Request) string {
	if s.journal == nil || req.DryRun {
		return ""
	}
	id, err := s.journal.BeginRun(models.Run{
		Operation: req.Op.Name,
		Args:      req.Op.Args,
		Dir:       s.store.Root(),
		Recursive: req.Recursive,
	})
	if err != nil {
		s.logger.Warn("journal: begin run failed", slog.String("error", err.Error()))
		return ""
	}
	return id
}

func (s *Service) finishRun(runID string, updated, failed int) {
	if runID == "" {
		return
	}
	if err := s.journal.FinishRun(runID, updated, failed); err != nil {
		s.logger.Warn("journal: finish run failed", slog.String("run_id", runID), slog.String("error", err.Error()))
	}
}

func (s *Service) display(path string) string {
	return filepath.Join(s.label, path)
}

// printf writes one whole report line so concurrent workers never interleave.
func (s *Service) printf(format string, args ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}
