// Package apitest provides an in-process fake of the CampaignHQ backend for tests.
//
// The fake keeps datasets, templates and executions in memory, speaks the
// same JSON and multipart contracts as the real server and streams execution
// progress over a websocket. Tests drive executions with Push and inject
// failures with Fail.
package apitest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/campaignhq/campaignhq/pkg/core"
)

// Credentials accepted by the fake.
const (
	Token        = "test-token"
	RefreshToken = "refresh-token"
	Email        = "ops@example.com"
	Password     = "secret"
)

type dataset struct {
	schema core.Schema
	rows   []core.Row
}

type failure struct {
	status int
	detail string
}

// Server is a fake backend listening on a local port.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	datasets     map[string]*dataset
	templates    map[string][]core.Template
	executions   map[int64]*core.Execution
	logs         map[int64][]core.LogEntry
	integrations []core.Integration
	subscribers  map[int64]map[chan core.Progress]struct{}
	failures     map[string]failure
	nextDataset  int
	nextTemplate int
	nextExec     int64
	heartbeats   int
	logFetches   int
	previews     int
	lastFilter   *core.FilterPayload
	lastCreate   *core.CreateTemplateRequest
	lastRun      map[string]string

	done      chan struct{}
	closeOnce sync.Once
}

// NewServer starts a fake backend with one active WhatsApp integration (id 1)
// and stops it when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		datasets:    make(map[string]*dataset),
		templates:   make(map[string][]core.Template),
		executions:  make(map[int64]*core.Execution),
		logs:        make(map[int64][]core.LogEntry),
		subscribers: make(map[int64]map[chan core.Progress]struct{}),
		failures:    make(map[string]failure),
		done:        make(chan struct{}),
		integrations: []core.Integration{{
			ID:                 1,
			ChannelType:        core.ChannelWhatsApp,
			ProviderName:       "twilio",
			SenderIdentifier:   "+10000000000",
			RateLimitPerMinute: 60,
			IsActive:           true,
		}},
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

// Close stops open progress streams and shuts the server down.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.Server.Close()
	})
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.injectFailures)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/logout", s.handleLogout)
	})

	r.Get("/ws/execution/{id}", s.handleProgress)

	r.Group(func(r chi.Router) {
		r.Use(requireToken)

		r.Post("/dataset/temp-upload", s.handleUpload)

		r.Route("/campaign-template", func(r chi.Router) {
			r.Post("/test-filter", s.handleTestFilter)
			r.Post("/", s.handleCreateTemplate)
			r.Get("/", s.handleListTemplates)
			r.Get("/{id}", s.handleGetTemplate)
			r.Put("/{id}", s.handleUpdateTemplate)
			r.Delete("/{id}", s.handleDeleteTemplate)
			r.Post("/{id}/publish", s.handlePublishTemplate)
			r.Post("/{id}/preview", s.handlePreviewTemplate)
		})

		r.Route("/execution", func(r chi.Router) {
			r.Post("/run", s.handleRun)
			r.Post("/preview-schema", s.handlePreviewSchema)
			r.Get("/", s.handleListExecutions)
			r.Get("/{id}", s.handleGetExecution)
			r.Post("/{id}/cancel", s.handleCancel)
			r.Get("/{id}/logs", s.handleLogs)
		})

		r.Get("/integrations/", s.handleIntegrations)
	})

	return r
}

// Fail makes the next request with method and path answer status with a
// {"detail": ...} body. An empty detail sends an empty body.
func (s *Server) Fail(method, path string, status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = failure{status: status, detail: detail}
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		s.mu.Lock()
		f, ok := s.failures[key]
		delete(s.failures, key)
		s.mu.Unlock()

		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		if f.detail == "" {
			w.WriteHeader(f.status)
			return
		}
		writeDetail(w, f.status, f.detail)
	})
}

func requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+Token {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- auth ---

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Email == "" || in.Password == "" {
		writeDetail(w, http.StatusBadRequest, "Email and password required.")
		return
	}
	if in.Email != Email || in.Password != Password {
		writeDetail(w, http.StatusUnauthorized, "Invalid credentials.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token":  Token,
		"refresh_token": RefreshToken,
		"token_type":    "bearer",
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !validRefresh(r) {
		writeDetail(w, http.StatusUnauthorized, "Invalid refresh token.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token":  Token,
		"refresh_token": RefreshToken,
		"token_type":    "bearer",
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !validRefresh(r) {
		writeDetail(w, http.StatusUnauthorized, "Invalid refresh token.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged out successfully."})
}

func validRefresh(r *http.Request) bool {
	var in struct {
		RefreshToken string `json:"refresh_token"`
	}
	return json.NewDecoder(r.Body).Decode(&in) == nil && in.RefreshToken == RefreshToken
}

// --- datasets ---

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ds, err := readCSVForm(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	s.nextDataset++
	id := fmt.Sprintf("00000000-0000-0000-0000-%012d", s.nextDataset)
	s.datasets[id] = ds
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"temp_dataset_id": id,
		"schema":          ds.schema,
		"row_count":       len(ds.rows),
		"preview_rows":    head(ds.rows, 10),
	})
}

func (s *Server) handleTestFilter(w http.ResponseWriter, r *http.Request) {
	ds, err := readCSVForm(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	var filter *core.FilterPayload
	if raw := r.FormValue("filter_definition"); raw != "" {
		filter = &core.FilterPayload{}
		if err := json.Unmarshal([]byte(raw), filter); err != nil {
			writeDetail(w, http.StatusBadRequest, "Invalid filter_definition JSON")
			return
		}
	}

	s.mu.Lock()
	s.lastFilter = filter
	s.mu.Unlock()

	matched, err := applyFilter(ds, filter)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"matched_count": len(matched),
		"matched_rows":  head(matched, 10),
		"schema":        ds.schema,
	})
}

// --- helpers ---

func readCSVForm(r *http.Request) (*dataset, error) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("file is required")
	}
	defer func() { _ = file.Close() }()
	return parseCSV(file)
}

// parseCSV reads a dataset the way the backend does: headers normalized and
// a column typed number only when every value parses as one.
func parseCSV(r io.Reader) (*dataset, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv is empty")
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = core.NormalizeName(h)
	}

	ds := &dataset{}
	numeric := make([]bool, len(headers))
	for i := range numeric {
		numeric[i] = len(records) > 1
	}
	for _, rec := range records[1:] {
		row := make(core.Row, len(headers))
		for i, h := range headers {
			v := ""
			if i < len(rec) {
				v = rec[i]
			}
			row[h] = v
			if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
				numeric[i] = false
			}
		}
		ds.rows = append(ds.rows, row)
	}
	for i, h := range headers {
		typ := core.ColumnString
		if numeric[i] {
			typ = core.ColumnNumber
		}
		ds.schema = append(ds.schema, core.Column{Name: h, Type: typ})
	}
	return ds, nil
}

func applyFilter(ds *dataset, filter *core.FilterPayload) ([]core.Row, error) {
	if filter == nil {
		return ds.rows, nil
	}
	if !filter.Logic.Valid() {
		return nil, detailError("Filter logic must be 'AND' or 'OR'.")
	}
	var out []core.Row
	for _, row := range ds.rows {
		match := filter.Logic == core.LogicAnd
		for _, c := range filter.Conditions {
			ok, err := evaluate(ds.schema, row, c)
			if err != nil {
				return nil, err
			}
			if filter.Logic == core.LogicAnd {
				match = match && ok
			} else {
				match = match || ok
			}
		}
		if match {
			out = append(out, row)
		}
	}
	return out, nil
}

func evaluate(schema core.Schema, row core.Row, c core.ConditionPayload) (bool, error) {
	col, ok := schema.Lookup(c.Column)
	if !ok {
		return false, detailError(fmt.Sprintf("Invalid column '%s'.", c.Column))
	}
	cell, _ := row.Get(col.Name)
	text := fmt.Sprint(cell)

	if col.Type.IsNumeric() {
		want, ok := c.Value.(float64)
		if !ok {
			return false, detailError(fmt.Sprintf("Column '%s' expects a numeric value.", c.Column))
		}
		got, _ := strconv.ParseFloat(strings.TrimSpace(text), 64)
		switch c.Operator {
		case core.OpEqual:
			return got == want, nil
		case core.OpLess:
			return got < want, nil
		case core.OpGreater:
			return got > want, nil
		case core.OpLessEqual:
			return got <= want, nil
		case core.OpGreaterEqual:
			return got >= want, nil
		}
		return false, detailError(fmt.Sprintf("Invalid operator '%s'.", c.Operator))
	}

	want := fmt.Sprint(c.Value)
	switch c.Operator {
	case core.OpEqual:
		return text == want, nil
	case core.OpContains:
		return strings.Contains(strings.ToLower(text), strings.ToLower(want)), nil
	}
	return false, detailError(fmt.Sprintf("Operator '%s' not allowed for string column '%s'.", c.Operator, c.Column))
}

// detailError carries a message meant for the response "detail" field.
type detailError string

func (e detailError) Error() string { return string(e) }

func head(rows []core.Row, n int) []core.Row {
	if rows == nil {
		return []core.Row{}
	}
	return rows[:min(n, len(rows))]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}
