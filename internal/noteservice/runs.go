package noteservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/fme/internal/apperr"
	"github.com/starford/fme/internal/checksum"
	"github.com/starford/fme/internal/models"
	"github.com/starford/fme/internal/watch"
)

// RunDetail is a journal run together with the files it rewrote.
type RunDetail struct {
	models.Run
	Changes []models.Change `json:"changes"`
}

// UndoReport lists the files restored by an undo.
type UndoReport struct {
	RunID    string      `json:"run_id"`
	Restored []string    `json:"restored"`
	Errors   []FileError `json:"errors"`
}

// Runs returns the most recent journal runs.
func (s *Service) Runs(_ context.Context, limit int) ([]models.Run, error) {
	if s.journal == nil {
		return nil, apperr.ErrJournalDisabled
	}
	runs, err := s.journal.Runs(limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(runs), nil
}

// Run returns one journal run with its changes.
func (s *Service) Run(_ context.Context, id string) (*RunDetail, error) {
	if s.journal == nil {
		return nil, apperr.ErrJournalDisabled
	}
	r, err := s.journal.Run(id)
	if err != nil {
		return nil, err
	}
	changes, err := s.journal.Changes(id)
	if err != nil {
		return nil, err
	}
	return &RunDetail{Run: *r, Changes: nonNilSlice(changes)}, nil
}

// Undo restores every file changed by the run id (the latest undoable run
// when id is empty). A file edited after the run is left alone and reported
// as a conflict.
func (s *Service) Undo(ctx context.Context, id string) (*UndoReport, error) {
	if s.journal == nil {
		return nil, apperr.ErrJournalDisabled
	}
	var (
		r   *models.Run
		err error
	)
	if id == "" {
		r, err = s.journal.LatestRun()
	} else {
		r, err = s.journal.Run(id)
	}
	if err != nil {
		return nil, err
	}
	if r.UndoneAt != nil {
		return nil, fmt.Errorf("run %s was already undone: %w", r.ID, apperr.ErrConflict)
	}
	if r.Dir != s.store.Root() {
		return nil, fmt.Errorf("%w: run %s belongs to %s", apperr.ErrInvalidArguments, r.ID, r.Dir)
	}

	changes, err := s.journal.Changes(r.ID)
	if err != nil {
		return nil, err
	}

	report := &UndoReport{RunID: r.ID, Restored: []string{}, Errors: []FileError{}}
	for _, c := range changes {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if err := s.restore(c); err != nil {
			s.logger.Warn("undo: file failed", slog.String("path", c.Path), slog.String("error", err.Error()))
			s.printf("Error processing %s: %v\n", s.display(c.Path), err)
			report.Errors = append(report.Errors, FileError{Path: c.Path, Error: err.Error()})
			continue
		}
		s.printf("Restored: %s\n", s.display(c.Path))
		report.Restored = append(report.Restored, c.Path)
		if s.hook != nil {
			s.hook("restored", c.Path)
		}
	}

	if err := s.journal.MarkUndone(r.ID); err != nil {
		return report, err
	}
	s.logger.Info("undo finished",
		slog.String("run_id", r.ID),
		slog.Int("restored", len(report.Restored)),
		slog.Int("failed", len(report.Errors)))
	return report, nil
}

func (s *Service) restore(c models.Change) error {
	current, err := s.store.Read(c.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("file no longer exists: %w", apperr.ErrNotFound)
		}
		return err
	}
	if !checksum.Matches(current, c.AfterChecksum) {
		return fmt.Errorf("file changed since the run: %w", apperr.ErrConflict)
	}
	return s.store.Write(c.Path, c.Before)
}

// Watch applies req.Op to every note created or modified under the root until
// ctx is cancelled. All rewrites of the session share one journal run.
func (s *Service) Watch(ctx context.Context, req Request) error {
	runID := s.beginRun(req)
	updated, failed := 0, 0
	defer func() { s.finishRun(runID, updated, failed) }()

	return watch.Watch(ctx, s.store.Root(), req.Recursive, s.logger, func(path string) {
		changed, err := s.applyFile(runID, path, req)
		switch {
		case err != nil:
			failed++
		case changed:
			updated++
		}
	})
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
