package render

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/url"
	"strings"

	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/report"
	"github.com/Keyring-Network/keyring-gavryn/agent-console/internal/results"
)

//go:embed templates/*.html
var templateFS embed.FS

var templateFuncs = template.FuncMap{
	"lines": func(text string) []string {
		return strings.Split(text, "\n")
	},
}

const DownloadsPrefix = "/static/downloads/"

var DefaultExamples = []string{
	"Search for information about Python programming language and show the top 3 results",
	"List all files in the current directory and count how many Python files there are",
	"Create a text file named 'todo.txt' with a list of 3 tasks: Buy groceries, Pay bills, Call mom",
	"Create a report on the latest laptops with their pros and cons",
}

var fileOperationLabels = map[string]string{
	"create_file":      "Created File",
	"read_file":        "Read File",
	"write_file":       "Wrote to File",
	"append_file":      "Appended to File",
	"delete_file":      "Deleted File",
	"save_to_file":     "Saved to File",
	"create_directory": "Created Directory",
	"list_directory":   "Listed Directory",
}

func FileOperationLabel(action string) string {
	if label, ok := fileOperationLabels[action]; ok {
		return label
	}
	return "File Operation"
}

type Renderer struct {
	templates *template.Template
	formatter report.Formatter
}

func NewRenderer(formatter report.Formatter) (*Renderer, error) {
	if formatter == nil {
		formatter = report.Lite{}
	}
	tmpl, err := template.New("render").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Renderer{templates: tmpl, formatter: formatter}, nil
}

func (r *Renderer) RenderRun(view *RunView, run results.RunResult) error {
	for _, step := range run.Results {
		if err := r.RenderStep(view, step); err != nil {
			return err
		}
	}
	r.RenderReport(view, run.Report)
	return nil
}

// RenderStep appends one step result to the panel its environment maps to.
// Failed steps become an error banner in the result area instead.
func (r *Renderer) RenderStep(view *RunView, step results.StepResult) error {
	if step.IsError() {
		banner, err := r.fragment("error-banner", step.Message)
		if err != nil {
			return err
		}
		view.ResultArea = append(view.ResultArea, banner)
		return nil
	}

	switch results.Classify(step) {
	case results.EnvironmentBrowser:
		fragment, err := r.fragment("browser", browserCard{
			Step:       step,
			Kind:       string(results.ActionKindOf(step)),
			Extraction: string(results.ExtractionKindOf(step)),
		})
		if err != nil {
			return err
		}
		view.Browser.append(fragment)
	case results.EnvironmentTerminal:
		fragment, err := r.fragment("terminal", terminalCard{Step: step, Output: terminalOutput(step)})
		if err != nil {
			return err
		}
		view.Terminal.append(fragment)
	case results.EnvironmentFileSystem:
		fragment, err := r.fragment("filesystem", fileCard{Step: step, Label: FileOperationLabel(step.Action)})
		if err != nil {
			return err
		}
		view.FileSystem.append(fragment)
	case results.EnvironmentGeneralResponse:
		fragment, err := r.fragment("general", newGeneralCard(step))
		if err != nil {
			return err
		}
		view.ResultArea = append(view.ResultArea, fragment)
	default:
		log.Printf("run %s: unrecognized step result %s", view.ID, truncate(string(step.Raw), 200))
		fragment, err := r.fragment("unclassified", unclassifiedCard{Step: step, Raw: indentJSON(step.Raw)})
		if err != nil {
			return err
		}
		view.ResultArea = append(view.ResultArea, fragment)
	}
	return nil
}

func (r *Renderer) RenderReport(view *RunView, text *string) {
	if text == nil || *text == "" {
		view.Report = template.HTML(`<p class="report-placeholder">` + report.Placeholder + `</p>`)
		view.ReportText = ""
		view.DownloadEnabled = false
		return
	}
	rendered := r.formatter.Format(*text)
	view.Report = rendered
	view.ReportText = report.PlainText(rendered)
	view.DownloadEnabled = true
}

// Fail turns view into a failed run: the message replaces both the result
// area and the report.
func (r *Renderer) Fail(view *RunView, message string) error {
	banner, err := r.fragment("error-banner", message)
	if err != nil {
		return err
	}
	view.Status = StatusFailed
	view.Message = message
	view.ResultArea = []template.HTML{banner}
	view.Report = banner
	view.ReportText = ""
	view.DownloadEnabled = false
	return nil
}

type Page struct {
	View            *RunView
	Instruction     string
	ValidationError string
	Notice          string
	Examples        []string
}

func (r *Renderer) RenderPage(w io.Writer, page Page) error {
	if page.View == nil {
		page.View = NewRunView("", "", StatusIdle)
	}
	if page.Examples == nil {
		page.Examples = DefaultExamples
	}
	return r.templates.ExecuteTemplate(w, "page", page)
}

type Problem struct {
	Title   string
	Message string
	Kind    string
}

func (r *Renderer) RenderProblem(w io.Writer, problem Problem) error {
	return r.templates.ExecuteTemplate(w, "problem", problem)
}

func (r *Renderer) fragment(name string, data any) (template.HTML, error) {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return template.HTML(strings.TrimSpace(buf.String())), nil
}

type browserCard struct {
	Step       results.StepResult
	Kind       string
	Extraction string
}

type terminalCard struct {
	Step   results.StepResult
	Output string
}

func terminalOutput(step results.StepResult) string {
	output := step.Stdout
	if step.Stderr != "" {
		output += "\nError: " + step.Stderr
	}
	return output
}

type fileCard struct {
	Step  results.StepResult
	Label string
}

type generalCard struct {
	Step         results.StepResult
	IsPDF        bool
	TypeLabel    string
	DownloadPath string
}

func newGeneralCard(step results.StepResult) generalCard {
	card := generalCard{Step: step, TypeLabel: "Text"}
	if step.DocumentType == "pdf" {
		card.IsPDF = true
		card.TypeLabel = "PDF (HTML for printing)"
	}
	if step.DocumentFilename != "" {
		card.DownloadPath = DownloadsPrefix + url.PathEscape(step.DocumentFilename)
	}
	return card
}

type unclassifiedCard struct {
	Step results.StepResult
	Raw  string
}

func indentJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
