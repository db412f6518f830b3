package render

import (
	"html/template"
	"strings"
	"time"

	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/results"
)

type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) Label() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

const ReportPendingPlaceholder = "The execution report will appear here after task completion"

type Panel struct {
	Environment results.Environment
	Title       string
	Placeholder string
	Active      bool
	Fragments   []template.HTML
}

func (p Panel) StatusLabel() string {
	if p.Active {
		return "Active"
	}
	return "Inactive"
}

func (p *Panel) append(fragment template.HTML) {
	p.Active = true
	p.Fragments = append(p.Fragments, fragment)
}

// RunView is everything the page shows for one run. A new RunView is built
// for every submission; panels only grow while the run is rendered.
type RunView struct {
	ID              string
	Instruction     string
	Status          Status
	Message         string
	Browser         Panel
	Terminal        Panel
	FileSystem      Panel
	ResultArea      []template.HTML
	Report          template.HTML
	ReportText      string
	DownloadEnabled bool
	StartedAt       time.Time
	CompletedAt     time.Time
}

func NewRunView(id string, instruction string, status Status) *RunView {
	return &RunView{
		ID:          id,
		Instruction: instruction,
		Status:      status,
		Browser: Panel{
			Environment: results.EnvironmentBrowser,
			Title:       "Browser",
			Placeholder: "No browser tasks executed yet",
		},
		Terminal: Panel{
			Environment: results.EnvironmentTerminal,
			Title:       "Terminal",
			Placeholder: "No terminal commands executed yet",
		},
		FileSystem: Panel{
			Environment: results.EnvironmentFileSystem,
			Title:       "File System",
			Placeholder: "No file operations executed yet",
		},
		Report:    template.HTML(`<p class="report-placeholder">` + ReportPendingPlaceholder + `</p>`),
		StartedAt: time.Now().UTC(),
	}
}

func (v *RunView) Panels() []Panel {
	return []Panel{v.Browser, v.Terminal, v.FileSystem}
}

func (v *RunView) Busy() bool {
	return v != nil && v.Status == StatusProcessing
}

func (v *RunView) Duration() time.Duration {
	if v.CompletedAt.IsZero() {
		return 0
	}
	return v.CompletedAt.Sub(v.StartedAt)
}
