package api

import (
	"bytes"
	"errors"
	"log"
	"net/http"

	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/console"
	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/render"
)

const (
	apiKeyErrorTitle   = "API Key Error"
	apiKeyErrorMessage = "The backend API key is missing or invalid. Please set up your API key to use the AI agent."
	generalErrorTitle  = "An Error Occurred"
	generalErrorText   = "Something went wrong. Please check the console logs for more details."
	runInProgressText  = "An instruction is already being processed. Please wait for it to finish."
	backendUnreachable = "The agent backend is not reachable right now. Submissions will fail until it is back."
)

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	page := render.Page{View: s.console.Current()}
	health, err := s.backend.Health(r.Context())
	switch {
	case err != nil:
		log.Printf("backend health check failed: %v", err)
		page.Notice = backendUnreachable
	case !health.APIKeyValid:
		s.writeProblem(w, render.Problem{Title: apiKeyErrorTitle, Message: apiKeyErrorMessage, Kind: "api_key"}, http.StatusServiceUnavailable)
		return
	}
	s.writePage(w, page, http.StatusOK)
}

func (s *Server) errorPage(w http.ResponseWriter, r *http.Request) {
	problem := render.Problem{Title: generalErrorTitle, Message: generalErrorText, Kind: "general"}
	if r.URL.Query().Get("type") == "api_key" {
		problem = render.Problem{Title: apiKeyErrorTitle, Message: apiKeyErrorMessage, Kind: "api_key"}
	}
	s.writeProblem(w, problem, http.StatusOK)
}

// submitForm handles the page's form post. A finished run redirects back to
// the page so a reload does not resubmit the instruction.
func (s *Server) submitForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	instruction := r.PostForm.Get("instruction")
	_, err := s.console.Submit(r.Context(), instruction)
	switch {
	case errors.Is(err, console.ErrEmptyInstruction):
		s.writePage(w, render.Page{
			View:            s.console.Current(),
			Instruction:     instruction,
			ValidationError: console.ValidationMessage,
		}, http.StatusBadRequest)
	case errors.Is(err, console.ErrRunInProgress):
		s.writePage(w, render.Page{
			View:        s.console.Current(),
			Instruction: instruction,
			Notice:      runInProgressText,
		}, http.StatusConflict)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (s *Server) writePage(w http.ResponseWriter, page render.Page, status int) {
	var buf bytes.Buffer
	if err := s.renderer.RenderPage(&buf, page); err != nil {
		log.Printf("render page: %v", err)
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) writeProblem(w http.ResponseWriter, problem render.Problem, status int) {
	var buf bytes.Buffer
	if err := s.renderer.RenderProblem(&buf, problem); err != nil {
		log.Printf("render problem page: %v", err)
		http.Error(w, problem.Message, status)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
