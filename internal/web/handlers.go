package web

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/a-h/templ"
	"github.com/go-chi/render"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/JonMunkholm/csvnome/internal/core"
	"github.com/JonMunkholm/csvnome/internal/grid"
	"github.com/JonMunkholm/csvnome/internal/history"
	"github.com/JonMunkholm/csvnome/internal/logging"
	"github.com/JonMunkholm/csvnome/internal/table"
	"github.com/JonMunkholm/csvnome/internal/web/templates"
)

// multipartMemory is how much of an upload ParseMultipartForm keeps in
// memory before spilling to a temp file.
const multipartMemory = 32 << 20

// maxGridLimit caps the rows returned by one /api/grid call.
const maxGridLimit = 5000

// loadResponse is returned by the load endpoints to JSON clients.
type loadResponse struct {
	core.Snapshot
	Grid grid.Page `json:"grid"`
}

// loadPathRequest asks the server to load a file from the local disk.
type loadPathRequest struct {
	Path string `json:"path"`
}

func (p *loadPathRequest) Bind(*http.Request) error {
	return validation.ValidateStruct(p,
		validation.Field(&p.Path, validation.Required),
	)
}

// saveRequest names the save destination. Empty means the default file.
type saveRequest struct {
	Path string `json:"path"`
}

func (*saveRequest) Bind(*http.Request) error { return nil }

type saveResponse struct {
	Path string `json:"path"`
}

func (s *Server) state(snap core.Snapshot) templates.State {
	return templates.State{
		FileName:    snap.FileName,
		Column:      snap.Column,
		Rows:        snap.Rows,
		Columns:     snap.Columns,
		SaveEnabled: snap.SaveEnabled,
		SaveName:    snap.SaveName,
		SavedTo:     snap.SavedTo,
	}
}

func (s *Server) firstPage() grid.Page {
	return grid.Window(s.service.Grid(), 0, s.cfg.Processing.GridPageSize)
}

// recentHistory returns recent events; failures are logged and shown as empty.
func (s *Server) recentHistory(r *http.Request) []history.Event {
	events, err := s.service.History(r.Context())
	if err != nil {
		logging.FromContext(r.Context()).Warn("history unavailable", "error", err)
		return nil
	}
	return events
}

// renderHTML writes c as an HTML response. Headers are already sent when
// rendering fails, so the error can only be logged.
func renderHTML(w http.ResponseWriter, r *http.Request, name string, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render failed", "component", name, "error", err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.service.Snapshot()
	renderHTML(w, r, "page", templates.Page(s.state(snap), s.firstPage(), s.recentHistory(r)))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"status":      "ok",
		"saveEnabled": s.service.SaveEnabled(),
	})
}

// handleLoad processes a multipart upload in the "file" field.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	// Leave room for the multipart envelope around the file itself.
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartMemory)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, fmt.Errorf("%w: %v", core.ErrFileTooLarge, err), http.StatusRequestEntityTooLarge)
			return
		}
		s.respondError(w, r, fmt.Errorf("%w: %v", core.ErrNoFile, err), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", core.ErrNoFile, err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	if _, err := s.service.ProcessUpload(withRequestMetadata(r), header.Filename, file); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.respondLoaded(w, r)
}

// handleLoadPath loads a file already on the local disk, which is what a
// desktop drop of a file path amounts to.
func (s *Server) handleLoadPath(w http.ResponseWriter, r *http.Request) {
	req := &loadPathRequest{}
	if err := render.Bind(r, req); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %v", core.ErrNoFile, err), http.StatusBadRequest)
		return
	}

	if _, err := s.service.ProcessFile(withRequestMetadata(r), req.Path); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.respondLoaded(w, r)
}

func (s *Server) respondLoaded(w http.ResponseWriter, r *http.Request) {
	snap := s.service.Snapshot()
	page := s.firstPage()

	if isHTMX(r) {
		renderHTML(w, r, "workspace", templates.Workspace(s.state(snap), page))
		return
	}
	render.JSON(w, r, loadResponse{Snapshot: snap, Grid: page})
}

// handleGrid returns a window of grid rows: ?offset=N&limit=M.
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	offset := parseIntParam(r, "offset", 0, 0)
	limit := parseIntParam(r, "limit", s.cfg.Processing.GridPageSize, 1)
	limit = min(limit, maxGridLimit)

	page := grid.Window(s.service.Grid(), offset, limit)
	if isHTMX(r) {
		renderHTML(w, r, "grid rows", templates.GridRows(page))
		return
	}
	render.JSON(w, r, page)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, s.service.Snapshot())
}

// handleDownload sends the current table as an attachment named after the
// default save name: ?format=csv (default) or ?format=xlsx.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	format, err := table.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	// Encode fully before writing headers so failures still get an error page.
	var buf bytes.Buffer
	if err := s.service.Export(withRequestMetadata(r), &buf, format); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.service.ExportName(format)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes())
}

// handleSave writes the current table to a local path.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	req := &saveRequest{}
	if r.ContentLength != 0 {
		if err := render.Bind(r, req); err != nil {
			s.respondError(w, r, err, http.StatusBadRequest)
			return
		}
	}

	path, err := s.service.Save(withRequestMetadata(r), req.Path)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	if isHTMX(r) {
		renderHTML(w, r, "notice", templates.Notice("Saved to "+path))
		return
	}
	render.JSON(w, r, saveResponse{Path: path})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	events, err := s.service.History(r.Context())
	if err != nil {
		s.respondError(w, r, err, http.StatusServiceUnavailable)
		return
	}

	if isHTMX(r) {
		renderHTML(w, r, "history", templates.History(events))
		return
	}
	if events == nil {
		events = []history.Event{}
	}
	render.JSON(w, r, events)
}

// parseIntParam parses an integer query parameter, falling back to def when
// it is missing, malformed or below minimum.
func parseIntParam(r *http.Request, name string, def, minimum int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return def
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < minimum {
		return def
	}
	return i
}
