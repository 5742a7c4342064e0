package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/csvnome/internal/config"
	"github.com/JonMunkholm/csvnome/internal/grid"
	"github.com/JonMunkholm/csvnome/internal/history"
	"github.com/JonMunkholm/csvnome/internal/logging"
	"github.com/JonMunkholm/csvnome/internal/table"
)

// Flow errors. Table-level failures use table.ErrParse, table.ErrSchema and
// table.ErrWrite.
var (
	ErrNotCSV        = errors.New("not a csv file")
	ErrNoFile        = errors.New("no file provided")
	ErrFileTooLarge  = errors.New("file too large")
	ErrNothingToSave = errors.New("nothing to save")
	ErrSaveExtension = errors.New("save destination must end in .csv or .xlsx")
	ErrCrossOrigin   = errors.New("cross-origin request rejected")
)

// Service runs the load, validate, transform, display and save steps and
// owns their only mutable state: the current transformed table and the
// grid model built from it. Operations are serialised, so a load or save
// always sees a consistent state and a failed load leaves it untouched.
type Service struct {
	column      string
	saveName    string
	outputDir   string
	maxFileSize int64
	historySize int
	history     history.Recorder
	limiter     *opLimiter

	mu       sync.Mutex
	current  *table.Table
	model    *grid.Model
	fileName string
	loadedAt time.Time
	savedTo  string
}

// NewService creates a Service from configuration. A nil recorder keeps
// history in memory.
func NewService(cfg *config.Config, rec history.Recorder) *Service {
	if rec == nil {
		rec = history.NewMemoryRecorder(100)
	}
	return &Service{
		column:      cfg.Processing.Column,
		saveName:    cfg.Processing.DefaultSaveName,
		outputDir:   cfg.Processing.OutputDir,
		maxFileSize: cfg.Upload.MaxFileSize,
		historySize: cfg.Processing.HistoryLimit,
		history:     rec,
		limiter:     newOpLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWait),
		model:       grid.New(nil),
	}
}

// Snapshot describes the current state for display.
type Snapshot struct {
	FileName    string    `json:"fileName,omitempty"`
	Column      string    `json:"column"`
	Rows        int       `json:"rows"`
	Columns     int       `json:"columns"`
	SaveEnabled bool      `json:"saveEnabled"`
	SaveName    string    `json:"saveName"`
	LoadedAt    time.Time `json:"loadedAt,omitzero"`
	SavedTo     string    `json:"savedTo,omitempty"`
}

// Snapshot returns the current state.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Service) snapshotLocked() Snapshot {
	return Snapshot{
		FileName:    s.fileName,
		Column:      s.column,
		Rows:        s.current.NumRows(),
		Columns:     s.current.NumColumns(),
		SaveEnabled: s.current != nil,
		SaveName:    s.saveName,
		LoadedAt:    s.loadedAt,
		SavedTo:     s.savedTo,
	}
}

// Grid returns the display model of the current table. The model is
// read-only and stays valid after later loads replace it.
func (s *Service) Grid() *grid.Model {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// SaveEnabled reports whether a transformed table is available to save.
func (s *Service) SaveEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// Column returns the name of the column being transformed.
func (s *Service) Column() string {
	return s.column
}

// DefaultSaveName returns the file name offered when saving.
func (s *Service) DefaultSaveName() string {
	return s.saveName
}

// IsCSVName reports whether name has a .csv extension (any case).
func IsCSVName(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".csv")
}

// ProcessFile loads the CSV file at path and, if it is valid, makes the
// transformed table current.
func (s *Service) ProcessFile(ctx context.Context, path string) (Snapshot, error) {
	name := filepath.Base(path)

	if err := s.limiter.acquire(ctx); err != nil {
		return Snapshot{}, s.rejectBusy(ctx, history.ActionLoadFailed, name, err)
	}
	defer s.limiter.release()

	if err := checkCSVName(path); err != nil {
		return s.rejectLoad(ctx, name, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return s.rejectLoad(ctx, name, &table.Error{Kind: table.ErrParse, Path: path, Err: err})
	}
	if info.IsDir() {
		return s.rejectLoad(ctx, name, fmt.Errorf("%w: %s is a directory", ErrNotCSV, path))
	}
	if s.maxFileSize > 0 && info.Size() > s.maxFileSize {
		return s.rejectLoad(ctx, name, fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrFileTooLarge, info.Size(), s.maxFileSize))
	}

	f, err := os.Open(path)
	if err != nil {
		return s.rejectLoad(ctx, name, &table.Error{Kind: table.ErrParse, Path: path, Err: err})
	}
	defer f.Close()

	return s.process(ctx, name, f)
}

// ProcessUpload loads a CSV stream received under the given file name.
func (s *Service) ProcessUpload(ctx context.Context, name string, r io.Reader) (Snapshot, error) {
	if r == nil {
		return s.rejectLoad(ctx, name, ErrNoFile)
	}
	if err := checkCSVName(name); err != nil {
		return s.rejectLoad(ctx, name, err)
	}

	if err := s.limiter.acquire(ctx); err != nil {
		return Snapshot{}, s.rejectBusy(ctx, history.ActionLoadFailed, name, err)
	}
	defer s.limiter.release()

	return s.process(ctx, name, newSizeLimitReader(r, s.maxFileSize))
}

func checkCSVName(name string) error {
	if !IsCSVName(name) {
		return fmt.Errorf("%w: %s", ErrNotCSV, filepath.Base(name))
	}
	return nil
}

// process runs load, validate and transform, then commits the result.
// Nothing is committed unless every step succeeds.
func (s *Service) process(ctx context.Context, name string, r io.Reader) (snap Snapshot, err error) {
	log := logging.WithFields(ctx, "file", name)

	s.mu.Lock()
	defer s.mu.Unlock()

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("processing %s: unexpected error: %v", name, rec)
			log.Error("load panicked", "panic", rec)
			s.record(ctx, history.Event{Action: history.ActionLoadFailed, FileName: name}, err)
			snap = s.snapshotLocked()
		}
	}()

	start := time.Now()
	transformed, err := s.loadAndTransform(r, name)
	if err != nil {
		log.Warn("load rejected", "error", err)
		s.record(ctx, history.Event{Action: history.ActionLoadFailed, FileName: name}, err)
		return s.snapshotLocked(), err
	}

	s.current = transformed
	s.model = grid.New(transformed)
	s.fileName = name
	s.loadedAt = time.Now().UTC()
	s.savedTo = ""

	log.Info("file processed",
		"rows", transformed.NumRows(),
		"columns", transformed.NumColumns(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	s.record(ctx, history.Event{
		Action:   history.ActionLoad,
		FileName: name,
		Rows:     transformed.NumRows(),
		Columns:  transformed.NumColumns(),
	}, nil)

	return s.snapshotLocked(), nil
}

func (s *Service) loadAndTransform(r io.Reader, name string) (*table.Table, error) {
	t, err := table.Load(r)
	if err != nil {
		var te *table.Error
		if errors.As(err, &te) && te.Path == "" {
			te.Path = name
		}
		return nil, err
	}
	if err := t.RequireColumn(s.column); err != nil {
		return nil, err
	}
	return t.Truncate(s.column)
}

// rejectLoad records a load that failed before reading started.
func (s *Service) rejectLoad(ctx context.Context, name string, err error) (Snapshot, error) {
	logging.WithFields(ctx, "file", name).Warn("load rejected", "error", err)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(ctx, history.Event{Action: history.ActionLoadFailed, FileName: name}, err)
	return s.snapshotLocked(), err
}

// rejectBusy records an operation that never got a slot. It does not take
// the lock, since the lock is what the operation was waiting for.
func (s *Service) rejectBusy(ctx context.Context, action history.Action, name string, err error) error {
	logging.WithFields(ctx, "file", name).Warn("operation rejected", "action", action, "error", err)
	s.record(ctx, history.Event{Action: action, FileName: name}, err)
	return err
}

// ResolveSavePath turns a user-supplied destination into a file path.
// An empty destination or a directory gets the default file name; a bare
// file name is placed in the configured output directory.
func (s *Service) ResolveSavePath(dest string) string {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return filepath.Join(s.outputDir, s.saveName)
	}
	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		return filepath.Join(dest, s.saveName)
	}
	if filepath.Base(dest) == dest {
		return filepath.Join(s.outputDir, dest)
	}
	return dest
}

// Save writes the current table to dest (see ResolveSavePath). The format
// follows the extension: .xlsx writes a workbook, .csv a CSV file. Any other
// extension is rejected with ErrSaveExtension.
// It returns the path written.
func (s *Service) Save(ctx context.Context, dest string) (string, error) {
	path := s.ResolveSavePath(dest)
	log := logging.WithFields(ctx, "path", path)

	if err := s.limiter.acquire(ctx); err != nil {
		return "", s.rejectBusy(ctx, history.ActionSaveFailed, filepath.Base(path), err)
	}
	defer s.limiter.release()

	if err := checkSaveName(path); err != nil {
		log.Warn("save rejected", "error", err)
		s.record(ctx, history.Event{Action: history.ActionSaveFailed, FileName: filepath.Base(path)}, err)
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		s.record(ctx, history.Event{Action: history.ActionSaveFailed, FileName: filepath.Base(path)}, ErrNothingToSave)
		return "", ErrNothingToSave
	}

	if err := s.current.WriteFile(path); err != nil {
		log.Error("save failed", "error", err)
		s.record(ctx, history.Event{Action: history.ActionSaveFailed, FileName: filepath.Base(path)}, err)
		return "", err
	}

	s.savedTo = path
	log.Info("file saved", "rows", s.current.NumRows())
	s.record(ctx, history.Event{
		Action:   history.ActionSave,
		FileName: filepath.Base(path),
		Rows:     s.current.NumRows(),
		Columns:  s.current.NumColumns(),
	}, nil)
	return path, nil
}

// checkSaveName allows only the two formats Save can write, so a save can
// never replace a file of another kind.
func checkSaveName(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx":
		return nil
	}
	return fmt.Errorf("%w: %s", ErrSaveExtension, filepath.Base(path))
}

// Export writes the current table to w in the given format, for downloads.
func (s *Service) Export(ctx context.Context, w io.Writer, format table.Format) error {
	if err := s.limiter.acquire(ctx); err != nil {
		return s.rejectBusy(ctx, history.ActionSaveFailed, s.ExportName(format), err)
	}
	defer s.limiter.release()

	s.mu.Lock()
	defer s.mu.Unlock()

	name := s.exportName(format)
	if s.current == nil {
		s.record(ctx, history.Event{Action: history.ActionSaveFailed, FileName: name}, ErrNothingToSave)
		return ErrNothingToSave
	}

	if err := s.current.WriteAs(w, format); err != nil {
		s.record(ctx, history.Event{Action: history.ActionSaveFailed, FileName: name}, err)
		return err
	}

	s.record(ctx, history.Event{
		Action:   history.ActionSave,
		FileName: name,
		Rows:     s.current.NumRows(),
		Columns:  s.current.NumColumns(),
	}, nil)
	return nil
}

// ExportName returns the download file name for format.
func (s *Service) ExportName(format table.Format) string {
	return s.exportName(format)
}

func (s *Service) exportName(format table.Format) string {
	if format == table.FormatXLSX {
		return strings.TrimSuffix(s.saveName, filepath.Ext(s.saveName)) + ".xlsx"
	}
	return s.saveName
}

// WaitForIdle blocks until no load or save is running or waiting, or ctx
// is done. Used during shutdown.
func (s *Service) WaitForIdle(ctx context.Context) error {
	return s.limiter.waitForDrain(ctx)
}

// Active returns the number of loads and saves running or waiting.
func (s *Service) Active() int {
	return s.limiter.activeCount()
}

// History returns the most recent processing events.
func (s *Service) History(ctx context.Context) ([]history.Event, error) {
	return s.history.Recent(ctx, s.historySize)
}

// record stores a history event. Recorder failures are logged only;
// history never fails the flow. Recorders are safe for concurrent use, so
// it may be called with or without the lock held.
func (s *Service) record(ctx context.Context, e history.Event, cause error) {
	e.IPAddress = GetIPAddressFromContext(ctx)
	e.UserAgent = GetUserAgentFromContext(ctx)
	if cause != nil {
		e.Error = cause.Error()
		e.ErrorCode = MapError(cause).Code
	}
	if err := s.history.Record(ctx, e); err != nil {
		logging.FromContext(ctx).Warn("history record failed", "action", e.Action, "error", err)
	}
}
