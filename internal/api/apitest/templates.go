package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/campaignhq/campaignhq/pkg/composer"
	"github.com/campaignhq/campaignhq/pkg/core"
)

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var in core.CreateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Body) == "" {
		writeDetail(w, http.StatusBadRequest, "name and template are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ds, ok := s.datasets[in.TempDatasetID]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Temp dataset not found")
		return
	}
	if unknown := composer.UnknownVariables(in.Body, ds.schema); len(unknown) > 0 {
		writeDetail(w, http.StatusBadRequest, fmt.Sprintf("Template variables not found in dataset: %s", strings.Join(unknown, ", ")))
		return
	}

	req := in
	s.lastCreate = &req
	s.nextTemplate++
	id := fmt.Sprintf("tpl-%d", s.nextTemplate)
	s.templates[id] = []core.Template{{
		LogicalID:     id,
		Version:       1,
		Name:          in.Name,
		Description:   in.Description,
		Status:        core.TemplateDraft,
		Body:          in.Body,
		Variables:     variablesOf(in.Body),
		Filter:        in.Filter,
		DatasetID:     int64(s.nextTemplate),
		DatasetSchema: ds.schema,
		UpdatedAt:     core.NewTimestamp(time.Now()),
	}}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"logical_id": id,
		"version":    1,
		"dataset_id": s.nextTemplate,
	})
}

func (s *Server) handleListTemplates(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.templates))
	for id := range s.templates {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	list := make([]core.Template, 0, len(ids))
	for _, id := range ids {
		versions := s.templates[id]
		list = append(list, versions[len(versions)-1])
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": len(list), "templates": list})
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.latest(chi.URLParam(r, "id"))
	if !ok {
		writeDetail(w, http.StatusNotFound, "Template not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var in map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := chi.URLParam(r, "id")
	current, ok := s.latest(id)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Template not found")
		return
	}

	next := current
	next.Version++
	next.Status = core.TemplateDraft
	next.UpdatedAt = core.NewTimestamp(time.Now())
	// Fields absent from the body keep their current value.
	decode := func(key string, dst any) {
		if raw, ok := in[key]; ok {
			_ = json.Unmarshal(raw, dst)
		}
	}
	decode("name", &next.Name)
	decode("description", &next.Description)
	decode("template", &next.Body)
	if raw, ok := in["filter_dsl"]; ok {
		next.Filter = nil
		_ = json.Unmarshal(raw, &next.Filter)
	}
	next.Variables = variablesOf(next.Body)
	s.templates[id] = append(s.templates[id], next)

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "logical_id": id, "version": next.Version})
}

func (s *Server) handlePublishTemplate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := chi.URLParam(r, "id")
	versions, ok := s.templates[id]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Template not found")
		return
	}
	versions[len(versions)-1].Status = core.TemplatePublished
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Template published"})
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := chi.URLParam(r, "id")
	if _, ok := s.templates[id]; !ok {
		writeDetail(w, http.StatusNotFound, "Template not found")
		return
	}
	delete(s.templates, id)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handlePreviewTemplate(w http.ResponseWriter, r *http.Request) {
	var in struct {
		SampleRow core.Row `json:"sample_row"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || len(in.SampleRow) == 0 {
		writeDetail(w, http.StatusBadRequest, "sample_row required")
		return
	}

	s.mu.Lock()
	t, ok := s.latest(chi.URLParam(r, "id"))
	s.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, "Template not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"rendered_message": composer.RenderText(t.Body, in.SampleRow)})
}

// Template returns the latest version of a stored template.
func (s *Server) Template(id string) (core.Template, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest(id)
}

// LastCreate returns the body of the most recent template creation.
func (s *Server) LastCreate() *core.CreateTemplateRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCreate
}

// LastFilter returns the filter of the most recent test-filter call (nil when none was sent).
func (s *Server) LastFilter() *core.FilterPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFilter
}

func (s *Server) latest(id string) (core.Template, bool) {
	versions, ok := s.templates[id]
	if !ok || len(versions) == 0 {
		return core.Template{}, false
	}
	return versions[len(versions)-1], true
}

func variablesOf(body string) []string {
	names := composer.ExtractVariables(body)
	for i, n := range names {
		names[i] = strings.ToLower(n)
	}
	if names == nil {
		return []string{}
	}
	return names
}
