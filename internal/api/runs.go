package api

import (
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/console"
	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/render"
	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/store"
)

type createRunRequest struct {
	Instruction string `json:"instruction"`
}

type panelResponse struct {
	Environment string   `json:"environment"`
	Title       string   `json:"title"`
	Active      bool     `json:"active"`
	StatusLabel string   `json:"status_label"`
	Placeholder string   `json:"placeholder"`
	Fragments   []string `json:"fragments"`
}

type runViewResponse struct {
	ID              string          `json:"id"`
	Instruction     string          `json:"instruction"`
	Status          string          `json:"status"`
	StatusLabel     string          `json:"status_label"`
	Message         string          `json:"message,omitempty"`
	Panels          []panelResponse `json:"panels"`
	ResultArea      []string        `json:"result_area"`
	ReportHTML      string          `json:"report_html"`
	DownloadEnabled bool            `json:"download_enabled"`
	StartedAt       string          `json:"started_at,omitempty"`
	CompletedAt     string          `json:"completed_at,omitempty"`
}

type runRecordResponse struct {
	ID                string         `json:"id"`
	Instruction       string         `json:"instruction"`
	Status            string         `json:"status"`
	Message           string         `json:"message,omitempty"`
	StepCount         int            `json:"step_count"`
	EnvironmentCounts map[string]int `json:"environment_counts,omitempty"`
	ReportGenerated   bool           `json:"report_generated"`
	CreatedAt         string         `json:"created_at"`
	CompletedAt       string         `json:"completed_at,omitempty"`
}

func (s *Server) createRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSONError(w, "invalid request", http.StatusBadRequest)
			return
		}
	}
	view, err := s.console.Submit(r.Context(), req.Instruction)
	switch {
	case errors.Is(err, console.ErrEmptyInstruction):
		writeJSONError(w, console.ValidationMessage, http.StatusBadRequest)
	case errors.Is(err, console.ErrRunInProgress):
		writeJSONError(w, runInProgressText, http.StatusConflict)
	case err != nil:
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
	default:
		writeJSONStatus(w, toRunViewResponse(view), http.StatusOK)
	}
}

func (s *Server) currentRun(w http.ResponseWriter, r *http.Request) {
	writeJSONStatus(w, toRunViewResponse(s.console.Current()), http.StatusOK)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.JournalListLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeJSONError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	runs, err := s.journal.ListRuns(r.Context(), limit)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]runRecordResponse, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunRecordResponse(run))
	}
	writeJSONStatus(w, map[string]any{"runs": out}, http.StatusOK)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	run, err := s.journal.GetRun(r.Context(), runID)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		writeJSONError(w, "run not found", http.StatusNotFound)
		return
	}
	writeJSONStatus(w, toRunRecordResponse(*run), http.StatusOK)
}

func toRunViewResponse(view *render.RunView) runViewResponse {
	resp := runViewResponse{
		ID:              view.ID,
		Instruction:     view.Instruction,
		Status:          string(view.Status),
		StatusLabel:     view.Status.Label(),
		Message:         view.Message,
		ResultArea:      htmlStrings(view.ResultArea),
		ReportHTML:      string(view.Report),
		DownloadEnabled: view.DownloadEnabled,
		StartedAt:       formatTime(view.StartedAt),
		CompletedAt:     formatTime(view.CompletedAt),
	}
	for _, panel := range view.Panels() {
		resp.Panels = append(resp.Panels, panelResponse{
			Environment: string(panel.Environment),
			Title:       panel.Title,
			Active:      panel.Active,
			StatusLabel: panel.StatusLabel(),
			Placeholder: panel.Placeholder,
			Fragments:   htmlStrings(panel.Fragments),
		})
	}
	return resp
}

func toRunRecordResponse(run store.RunRecord) runRecordResponse {
	return runRecordResponse{
		ID:                run.ID,
		Instruction:       run.Instruction,
		Status:            run.Status,
		Message:           run.Message,
		StepCount:         run.StepCount,
		EnvironmentCounts: run.EnvironmentCounts,
		ReportGenerated:   run.ReportGenerated,
		CreatedAt:         run.CreatedAt,
		CompletedAt:       run.CompletedAt,
	}
}

func htmlStrings(fragments []template.HTML) []string {
	out := make([]string, 0, len(fragments))
	for _, fragment := range fragments {
		out = append(out, string(fragment))
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
