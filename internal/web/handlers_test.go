package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/csvnome/internal/config"
	"github.com/JonMunkholm/csvnome/internal/core"
	"github.com/JonMunkholm/csvnome/internal/history"
	"github.com/JonMunkholm/csvnome/internal/logging"
	"github.com/JonMunkholm/csvnome/internal/web/templates"
)

const sampleCSV = "nome,idade\nAna Silva,30\nBruno,25\n"

func testConfig(dir string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:           "127.0.0.1",
			Port:           8080,
			RequestTimeout: 10 * time.Second,
		},
		Upload: config.UploadConfig{MaxFileSize: 1 << 20},
		Processing: config.ProcessingConfig{
			Column:          "nome",
			DefaultSaveName: "csv2.csv",
			OutputDir:       dir,
			GridPageSize:    1,
			HistoryLimit:    20,
		},
		Security: config.SecurityConfig{EnableCSP: true},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	svc := core.NewService(cfg, history.NewMemoryRecorder(50))
	s := NewServer(cfg, svc)
	t.Cleanup(func() { s.Shutdown(context.Background()) })
	return s
}

func uploadRequest(t *testing.T, name, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/load", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestIndex(t *testing.T) {
	s := newTestServer(t, testConfig(t.TempDir()))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `id="drop-zone"`)
	assert.Contains(t, body, `accept=".csv,text/csv"`)
	assert.Contains(t, body, `id="save-button" type="submit" disabled`)
	assert.Contains(t, body, `value="csv2.csv"`)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestLoad_JSON(t *testing.T) {
	s := newTestServer(t, testConfig(t.TempDir()))

	rec := serve(s, uploadRequest(t, "clientes.csv", sampleCSV))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		FileName    string `json:"fileName"`
		SaveEnabled bool   `json:"saveEnabled"`
		Rows        int    `json:"rows"`
		Grid        struct {
			Columns []string   `json:"columns"`
			Rows    [][]string `json:"rows"`
			Total   int        `json:"total"`
		} `json:"grid"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "clientes.csv", resp.FileName)
	assert.True(t, resp.SaveEnabled)
	assert.Equal(t, 2, resp.Rows)
	assert.Equal(t, []string{"nome", "idade"}, resp.Grid.Columns)
	assert.Equal(t, [][]string{{"Ana", "30"}}, resp.Grid.Rows, "first page holds GridPageSize rows")
	assert.Equal(t, 2, resp.Grid.Total)
}

func TestLoad_HTMXFragment(t *testing.T) {
	s := newTestServer(t, testConfig(t.TempDir()))

	req := uploadRequest(t, "clientes.csv", sampleCSV)
	req.Header.Set("HX-Request", "true")
	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, `<div id="workspace">`))
	assert.Contains(t, body, "<td>Ana</td>")
	assert.Contains(t, body, `data-offset="1"`)
	assert.NotContains(t, body, "disabled")
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name       string
		file       string
		content    string
		wantStatus int
		wantCode   string
	}{
		{"missing column", "dados.csv", "idade,cidade\n30,Lisboa\n", http.StatusUnprocessableEntity, "SCH001"},
		{"not csv", "dados.txt", sampleCSV, http.StatusUnprocessableEntity, "FILE006"},
		{"malformed", "dados.csv", "nome\nAna,extra\n", http.StatusUnprocessableEntity, "FILE002"},
		{"empty", "dados.csv", "", http.StatusUnprocessableEntity, "FILE005"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, testConfig(t.TempDir()))

			rec := serve(s, uploadRequest(t, tt.file, tt.content))
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.NotEmpty(t, resp.Message)
			assert.False(t, s.service.SaveEnabled())
		})
	}
}

func TestLoad_NoFileField(t *testing.T) {
	s := newTestServer(t, testConfig(t.TempDir()))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/load", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := serve(s, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "FILE004")
}

func TestLoad_ErrorFragment(t *testing.T) {
	s := newTestServer(t, testConfig(t.TempDir()))

	req := uploadRequest(t, "dados.csv", "idade\n1\n")
	req.Header.Set("HX-Request", "true")
	rec := serve(s, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `class="alert alert-error"`)
	assert.Contains(t, rec.Body.String(), `data-code="SCH001"`)
}

func TestLoadPath(t *testing.T) {
	dir := t.TempDir()
	s := newTestServer(t, testConfig(dir))
	path := filepath.Join(dir, "local.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	body, _ := json.Marshal(map[string]string{"path": path})
	req := httptest.NewRequest(http.MethodPost, "/api/load-path", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := serve(s, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, s.service.SaveEnabled())
	assert.Equal(t, "local.csv", s.service.Snapshot().FileName)
}

func TestLoadPath_Validation(t *testing.T) {
	dir := t.TempDir()
	s := newTestServer(t, testConfig(dir))

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"blank path", `{"path":""}`, http.StatusBadRequest, "FILE004"},
		{"bad json", `{`, http.StatusBadRequest, "FILE004"},
		{"missing file", `{"path":"` + filepath.ToSlash(filepath.Join(dir, "nope.csv")) + `"}`, http.StatusNotFound, "FILE003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/load-path", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := serve(s, req)

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestGrid_Paging(t *testing.T) {
	s := newTestServer(t, testConfig(t.TempDir()))
	require.Equal(t, http.StatusOK, serve(s, uploadRequest(t, "a.csv", sampleCSV)).Code)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/grid?offset=1&limit=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		RowHeaders []string   `json:"rowHeaders"`
		Rows       [][]string `json:"rows"`
		Offset     int        `json:"offset"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Offset)
	assert.Equal(t, []string{"1"}, page.RowHeaders)
	assert.Equal(t, [][]string{{"Bruno", "25"}}, page.Rows)

	req := httptest.NewRequest(http.MethodGet, "/api/grid?offset=1", nil)
	req.Header.Set("HX-Request", "true")
	rec = serve(s, req)
	assert.Contains(t, rec.Body.String(), "<td>Bruno</td>")
	assert.NotContains(t, rec.Body.String(), "data-offset")
}

func TestGrid_EmptyBeforeLoad(t *testing.T) {
	s := newTestServer(t, testConfig(t.TempDir()))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/grid?offset=-5&limit=abc", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"columns":[],"rowHeaders":[],"rows":[],"offset":0,"total":0}`, rec.Body.String())
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	s := newTestServer(t, testConfig(dir))

	req := httptest.NewRequest(http.MethodPost, "/api/save", strings.NewReader(`{"path":""}`))
	req.Header.Set("Content-Type", "application/json")
	rec := serve(s, req)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "SAVE002")

	require.Equal(t, http.StatusOK, serve(s, uploadRequest(t, "a.csv", sampleCSV)).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/save", strings.NewReader(`{"path":""}`))
	req.Header.Set("Content-Type", "application/json")
	rec = serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp saveResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, filepath.Join(dir, "csv2.csv"), resp.Path)

	data, err := os.ReadFile(resp.Path)
	require.NoError(t, err)
	assert.Equal(t, "nome,idade\nAna,30\nBruno,25\n", string(data))
}

func TestSave_NoBodyUsesDefault(t *testing.T) {
	dir := t.TempDir()
	s := newTestServer(t, testConfig(dir))
	require.Equal(t, http.StatusOK, serve(s, uploadRequest(t, "a.csv", sampleCSV)).Code)

	req := httptest.NewRequest(http.MethodPost, "/api/save", nil)
	req.Header.Set("HX-Request", "true")
	rec := serve(s, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Saved to")
	assert.FileExists(t, filepath.Join(dir, "csv2.csv"))
}

func TestCrossSiteRequestsRejected(t *testing.T) {
	dir := t.TempDir()
	s := newTestServer(t, testConfig(dir))

	t.Run("upload from another origin", func(t *testing.T) {
		req := uploadRequest(t, "a.csv", "nome,cmd\nx,echo pwned\n")
		req.Header.Set("Origin", "https://evil.example")
		rec := serve(s, req)

		require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "REQ003", resp.Code)
		assert.False(t, s.service.SaveEnabled(), "the upload must not be processed")
	})

	t.Run("upload marked cross-site", func(t *testing.T) {
		req := uploadRequest(t, "a.csv", sampleCSV)
		req.Header.Set("Sec-Fetch-Site", "cross-site")
		assert.Equal(t, http.StatusForbidden, serve(s, req).Code)
		assert.False(t, s.service.SaveEnabled())
	})

	t.Run("same-origin upload allowed", func(t *testing.T) {
		req := uploadRequest(t, "a.csv", sampleCSV)
		req.Header.Set("Origin", "http://"+req.Host)
		req.Header.Set("Sec-Fetch-Site", "same-origin")
		require.Equal(t, http.StatusOK, serve(s, req).Code)
	})

	t.Run("save from another origin", func(t *testing.T) {
		dest := filepath.Join(dir, "evil.csv")
		req := httptest.NewRequest(http.MethodPost, "/api/save", strings.NewReader(`{"path":"`+filepath.ToSlash(dest)+`"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Sec-Fetch-Site", "cross-site")
		assert.Equal(t, http.StatusForbidden, serve(s, req).Code)
		assert.NoFileExists(t, dest)
	})
}

func TestPathEndpointsRequireJSON(t *testing.T) {
	dir := t.TempDir()
	s := newTestServer(t, testConfig(dir))
	require.Equal(t, http.StatusOK, serve(s, uploadRequest(t, "a.csv", sampleCSV)).Code)

	dest := filepath.Join(dir, "bashrc")
	for _, target := range []string{"/api/save", "/api/load-path"} {
		t.Run(target, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, target, strings.NewReader("Path="+dest))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := serve(s, req)

			assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
			assert.NoFileExists(t, dest)
		})
	}
}

func TestSave_RejectsNonTableExtension(t *testing.T) {
	dir := t.TempDir()
	s := newTestServer(t, testConfig(dir))
	require.Equal(t, http.StatusOK, serve(s, uploadRequest(t, "a.csv", sampleCSV)).Code)

	dest := filepath.Join(dir, "bashrc")
	require.NoError(t, os.WriteFile(dest, []byte("alias ll='ls -l'\n"), 0o644))

	body, _ := json.Marshal(map[string]string{"path": dest})
	req := httptest.NewRequest(http.MethodPost, "/api/save", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := serve(s, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "SAVE003", resp.Code)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "alias ll='ls -l'\n", string(data))
}

func TestStaticAssets(t *testing.T) {
	s := newTestServer(t, testConfig(t.TempDir()))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/static/app.js", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/api/load")

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/css")
}

func TestDownload(t *testing.T) {
	s := newTestServer(t, testConfig(t.TempDir()))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/download", nil))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	require.Equal(t, http.StatusOK, serve(s, uploadRequest(t, "a.csv", sampleCSV)).Code)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/download", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="csv2.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "nome,idade\nAna,30\nBruno,25\n", rec.Body.String())

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/download?format=xlsx", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="csv2.xlsx"`, rec.Header().Get("Content-Disposition"))

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue("Sheet1", "A2")
	require.NoError(t, err)
	assert.Equal(t, "Ana", v)

	rec = serve(s, httptest.NewRequest(http.MethodGet, "/api/download?format=pdf", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistory(t *testing.T) {
	s := newTestServer(t, testConfig(t.TempDir()))
	serve(s, uploadRequest(t, "bad.txt", sampleCSV))
	serve(s, uploadRequest(t, "good.csv", sampleCSV))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var events []history.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 2)
	assert.Equal(t, history.ActionLoad, events[0].Action)
	assert.Equal(t, "good.csv", events[0].FileName)
	assert.Equal(t, history.ActionLoadFailed, events[1].Action)
	assert.Equal(t, "FILE006", events[1].ErrorCode)
	assert.Equal(t, "192.0.2.1", events[0].IPAddress, "httptest default client address")

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req.Header.Set("HX-Request", "true")
	rec = serve(s, req)
	assert.Contains(t, rec.Body.String(), "good.csv")
	assert.Contains(t, rec.Body.String(), `class="failed"`)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, testConfig(t.TempDir()))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","saveEnabled":false}`, rec.Body.String())
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2}
	s := newTestServer(t, cfg)

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	}

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/state", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE001")
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := newRateLimiter(1, 50*time.Millisecond)
	defer rl.stop()

	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"))
	assert.True(t, rl.allow("b"), "limits are per client")

	time.Sleep(60 * time.Millisecond)
	assert.True(t, rl.allow("a"), "window resets")
}

func TestSecurityHeaders_CSPToggle(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Security.EnableCSP = false
	s := newTestServer(t, cfg)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Empty(t, rec.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

type brokenWriter struct{ header http.Header }

func (b *brokenWriter) Header() http.Header       { return b.header }
func (b *brokenWriter) WriteHeader(int)           {}
func (b *brokenWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestRenderHTML_LogsFailure(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var logs bytes.Buffer
	logging.SetupWriter(&logs, "info", "json")

	w := &brokenWriter{header: http.Header{}}
	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	renderHTML(w, req, "history", templates.History(nil))

	assert.Equal(t, "text/html; charset=utf-8", w.header.Get("Content-Type"))
	assert.Contains(t, logs.String(), `"msg":"render failed"`)
	assert.Contains(t, logs.String(), `"component":"history"`)
	assert.Contains(t, logs.String(), "connection reset")
}
