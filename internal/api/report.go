package api

import (
	"fmt"
	"net/http"

	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/report"
)

func (s *Server) downloadReport(w http.ResponseWriter, r *http.Request) {
	view := s.console.Current()
	if !view.DownloadEnabled {
		http.Error(w, "no report available", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.DownloadFilename))
	_, _ = w.Write([]byte(view.ReportText))
}
