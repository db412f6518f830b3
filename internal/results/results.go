package results

import (
	"bytes"
	"encoding/json"
)

const (
	StatusSuccess   = "success"
	StatusError     = "error"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type RunResult struct {
	Status  string       `json:"status"`
	Results []StepResult `json:"results"`
	Report  *string      `json:"report"`
	Message string       `json:"message,omitempty"`
}

func (r RunResult) Completed() bool {
	return r.Status == StatusCompleted
}

func (r RunResult) ReportText() string {
	if r.Report == nil {
		return ""
	}
	return *r.Report
}

// StepResult is the union of every field a backend step can report. Each
// renderer reads only the subset for its kind; Raw keeps the record as it
// arrived.
type StepResult struct {
	Status          string `json:"status"`
	Message         string `json:"message,omitempty"`
	StepNumber      Scalar `json:"step_number,omitempty"`
	Environment     string `json:"environment,omitempty"`
	ExpectedOutcome string `json:"expected_outcome,omitempty"`
	Action          string `json:"action,omitempty"`
	ActionType      string `json:"action_type,omitempty"`

	URL            string          `json:"url,omitempty"`
	Title          string          `json:"title,omitempty"`
	ContentPreview string          `json:"content_preview,omitempty"`
	Query          string          `json:"query,omitempty"`
	Source         string          `json:"source,omitempty"`
	SearchResults  json.RawMessage `json:"results,omitempty"`
	ReviewTarget   string          `json:"review_target,omitempty"`
	Summary        string          `json:"summary,omitempty"`
	Analysis       string          `json:"analysis,omitempty"`
	Target         string          `json:"target,omitempty"`
	ExtractionType string          `json:"extraction_type,omitempty"`
	Extracted      json.RawMessage `json:"extracted_content,omitempty"`
	Previous       json.RawMessage `json:"previous_results,omitempty"`

	Command    string `json:"command,omitempty"`
	Stdout     string `json:"stdout,omitempty"`
	Stderr     string `json:"stderr,omitempty"`
	ReturnCode Scalar `json:"return_code,omitempty"`

	Filename  string   `json:"filename,omitempty"`
	Directory string   `json:"directory,omitempty"`
	Files     []string `json:"files,omitempty"`
	Content   string   `json:"content,omitempty"`

	Response               string `json:"response,omitempty"`
	DocumentCreated        bool   `json:"document_created,omitempty"`
	DocumentType           string `json:"document_type,omitempty"`
	DocumentFilename       string `json:"document_filename,omitempty"`
	DocumentContentPreview string `json:"document_content_preview,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// stepFields has StepResult's fields without its UnmarshalJSON.
type stepFields StepResult

// UnmarshalJSON never fails: one malformed step must not cost the run its
// other steps. Mistyped fields fall back to decodeTolerant, and a record that
// is not an object decodes to an empty step that only carries Raw.
func (r *StepResult) UnmarshalJSON(data []byte) error {
	var decoded stepFields
	if err := json.Unmarshal(data, &decoded); err != nil {
		decoded = decodeTolerant(data)
	}
	*r = StepResult(decoded)
	r.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// decodeTolerant keeps every field that decodes as-is, turns mistyped
// scalars into their JSON text and drops mistyped objects and arrays.
func decodeTolerant(data []byte) stepFields {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return stepFields{}
	}
	cleaned := make(map[string]json.RawMessage, len(fields))
	for key, value := range fields {
		if fieldFits(key, value) {
			cleaned[key] = value
			continue
		}
		trimmed := bytes.TrimSpace(value)
		if len(trimmed) == 0 || trimmed[0] == '{' || trimmed[0] == '[' {
			continue
		}
		text, err := json.Marshal(string(trimmed))
		if err != nil || !fieldFits(key, text) {
			continue
		}
		cleaned[key] = text
	}
	raw, err := json.Marshal(cleaned)
	if err != nil {
		return stepFields{}
	}
	var decoded stepFields
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return stepFields{}
	}
	return decoded
}

func fieldFits(key string, value json.RawMessage) bool {
	single, err := json.Marshal(map[string]json.RawMessage{key: value})
	if err != nil {
		return false
	}
	var target stepFields
	return json.Unmarshal(single, &target) == nil
}

func (r StepResult) IsError() bool {
	return r.Status == StatusError
}

func (r StepResult) Succeeded() bool {
	return r.Status == StatusSuccess
}

func (r StepResult) SearchItems() []SearchResultItem {
	var items []SearchResultItem
	decodeLoose(r.SearchResults, &items)
	return items
}

func (r StepResult) PreviousResults() []SearchResultItem {
	var items []SearchResultItem
	decodeLoose(r.Previous, &items)
	return items
}

type SearchResultItem struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet,omitempty"`
}

type Headline struct {
	Headline string `json:"headline"`
	Source   string `json:"source"`
	URL      string `json:"url"`
}

type ProsCons struct {
	Product string   `json:"product"`
	Pros    []string `json:"pros"`
	Cons    []string `json:"cons"`
	Source  string   `json:"source"`
}

type TrendPoint struct {
	Year  Scalar `json:"year"`
	Value Scalar `json:"value"`
}

type Trends struct {
	Topics  []string     `json:"trend_topics"`
	Data    []TrendPoint `json:"trend_data"`
	Sources []string     `json:"sources"`
}

type Summary struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	Sources   []string `json:"sources"`
}

type GeneralItem struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Source  string `json:"source"`
}

func (r StepResult) Headlines() []Headline {
	var items []Headline
	decodeLoose(r.Extracted, &items)
	return items
}

func (r StepResult) ProsCons() []ProsCons {
	var items []ProsCons
	decodeLoose(r.Extracted, &items)
	return items
}

func (r StepResult) Trends() Trends {
	var trends Trends
	decodeLoose(r.Extracted, &trends)
	return trends
}

func (r StepResult) ExtractedSummary() Summary {
	var summary Summary
	decodeLoose(r.Extracted, &summary)
	return summary
}

func (r StepResult) GeneralItems() []GeneralItem {
	var items []GeneralItem
	decodeLoose(r.Extracted, &items)
	return items
}

// decodeLoose fills target from raw when the shapes agree and leaves it at
// its zero value otherwise.
func decodeLoose(raw json.RawMessage, target any) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return
	}
	_ = json.Unmarshal(raw, target)
}

// Scalar holds any JSON scalar as display text. Objects and arrays are kept
// as their raw JSON.
type Scalar string

func (s *Scalar) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*s = ""
		return nil
	}
	if trimmed[0] == '"' {
		var value string
		if err := json.Unmarshal(trimmed, &value); err != nil {
			return err
		}
		*s = Scalar(value)
		return nil
	}
	*s = Scalar(trimmed)
	return nil
}

func (s Scalar) String() string {
	return string(s)
}

func (s Scalar) Present() bool {
	return s != "" && s != "0" && s != "false"
}
