package apitest

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/campaignhq/campaignhq/pkg/core"
)

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	ds, err := readCSVForm(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	fields := map[string]string{
		"logical_id":       r.FormValue("logical_id"),
		"channel_type":     r.FormValue("channel_type"),
		"recipient_column": r.FormValue("recipient_column"),
		"integration_id":   r.FormValue("integration_id"),
	}
	integrationID, err := strconv.ParseInt(fields["integration_id"], 10, 64)
	if err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "integration_id must be an integer")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun = fields

	t, ok := s.latest(fields["logical_id"])
	if !ok || t.Status != core.TemplatePublished {
		writeDetail(w, http.StatusNotFound, "Published template not found.")
		return
	}
	if !s.integrationActive(integrationID, core.ChannelType(fields["channel_type"])) {
		writeDetail(w, http.StatusBadRequest, "Invalid or inactive integration.")
		return
	}
	if !ds.schema.Has(fields["recipient_column"]) {
		writeDetail(w, http.StatusBadRequest, "Recipient column not found in CSV.")
		return
	}

	s.nextExec++
	id := s.nextExec
	s.executions[id] = &core.Execution{
		ID:          id,
		TemplateID:  t.DatasetID,
		Status:      core.ExecutionQueued,
		ChannelType: core.ChannelType(fields["channel_type"]),
		Total:       len(ds.rows),
		CreatedAt:   core.NewTimestamp(time.Now()),
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "execution_id": id, "status": core.ExecutionQueued})
}

func (s *Server) handlePreviewSchema(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	if _, hdr, err := r.FormFile("file"); err == nil && !strings.HasSuffix(strings.ToLower(hdr.Filename), ".csv") {
		writeDetail(w, http.StatusBadRequest, "Only CSV files are allowed.")
		return
	}
	ds, err := readCSVForm(r)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid CSV file.")
		return
	}

	s.mu.Lock()
	s.previews++
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"row_count":   len(ds.rows),
		"schema":      ds.schema,
		"sample_rows": head(ds.rows, 5),
	})
}

func (s *Server) handleListExecutions(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]core.Execution, 0, len(s.executions))
	for _, e := range s.executions {
		list = append(list, *e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	writeJSON(w, http.StatusOK, map[string]any{"total": len(list), "executions": list})
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.executions[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Execution not found.")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.executions[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Execution not found.")
		return
	}
	if !e.Status.IsActive() {
		writeDetail(w, http.StatusBadRequest, "Execution cannot be cancelled.")
		return
	}
	e.Status = core.ExecutionCancelled
	e.CompletedAt = core.NewTimestamp(time.Now())
	s.broadcast(id, progressOf(e))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Execution cancelled."})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	id, _ := pathID(r)
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 {
		limit = 50
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.logFetches++

	if _, ok := s.executions[id]; !ok {
		writeDetail(w, http.StatusNotFound, "Execution not found.")
		return
	}
	all := s.logs[id]
	start := min((page-1)*limit, len(all))
	end := min(start+limit, len(all))
	writeJSON(w, http.StatusOK, core.LogPage{
		TotalLogs: len(all),
		Page:      page,
		Limit:     limit,
		Logs:      append([]core.LogEntry{}, all[start:end]...),
	})
}

func (s *Server) handleIntegrations(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"total": len(s.integrations), "integrations": s.integrations})
}

func (s *Server) integrationActive(id int64, channel core.ChannelType) bool {
	for _, i := range s.integrations {
		if i.ID == id && i.ChannelType == channel && i.IsActive {
			return true
		}
	}
	return false
}

// AddIntegration registers another delivery provider.
func (s *Server) AddIntegration(i core.Integration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.integrations = append(s.integrations, i)
}

// AddExecution registers an execution directly, bypassing /execution/run.
func (s *Server) AddExecution(e core.Execution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executions[e.ID] = &e
	s.nextExec = max(s.nextExec, e.ID)
}

// Execution returns the server-side state of an execution.
func (s *Server) Execution(id int64) (core.Execution, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.executions[id]
	if !ok {
		return core.Execution{}, false
	}
	return *e, true
}

// SetLogs replaces the delivery logs of an execution.
func (s *Server) SetLogs(id int64, logs []core.LogEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs[id] = logs
}

// LogFetches returns how many log pages have been requested.
func (s *Server) LogFetches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logFetches
}

// SchemaPreviews returns how many schema previews were served.
func (s *Server) SchemaPreviews() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.previews
}

// LastRun returns the form fields of the most recent execution launch.
func (s *Server) LastRun() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}
