package results

type Environment string

const (
	EnvironmentUnknown         Environment = ""
	EnvironmentBrowser         Environment = "browser"
	EnvironmentTerminal        Environment = "terminal"
	EnvironmentFileSystem      Environment = "file_system"
	EnvironmentGeneralResponse Environment = "general_response"
)

type ActionKind string

const (
	ActionNavigation ActionKind = "navigation"
	ActionSearch     ActionKind = "search"
	ActionReview     ActionKind = "review"
	ActionExtraction ActionKind = "extraction"
	ActionOptional   ActionKind = "optional"
	ActionGeneric    ActionKind = "generic"
)

type ExtractionKind string

const (
	ExtractionHeadlines ExtractionKind = "headlines"
	ExtractionProsCons  ExtractionKind = "pros_cons"
	ExtractionTrends    ExtractionKind = "trends"
	ExtractionSummary   ExtractionKind = "summary"
	ExtractionGeneral   ExtractionKind = "general"
)

var fileMutationActions = map[string]struct{}{
	"create_file": {},
	"read_file":   {},
	"write_file":  {},
	"append_file": {},
	"delete_file": {},
}

type legacyRule struct {
	environment Environment
	matches     func(StepResult) bool
}

// legacyRules infers the environment of untagged records. Order is
// significant: the first matching rule wins.
var legacyRules = []legacyRule{
	{
		environment: EnvironmentBrowser,
		matches: func(r StepResult) bool {
			return r.URL != "" || r.Query != "" || r.ActionType == string(ActionReview)
		},
	},
	{
		environment: EnvironmentTerminal,
		matches: func(r StepResult) bool {
			return r.Command != "" || r.Stdout != ""
		},
	},
	{
		environment: EnvironmentFileSystem,
		matches: func(r StepResult) bool {
			_, ok := fileMutationActions[r.Action]
			return ok
		},
	},
	{
		environment: EnvironmentGeneralResponse,
		matches: func(r StepResult) bool {
			return r.ActionType == string(EnvironmentGeneralResponse)
		},
	},
}

// Classify routes a step result to its environment. An explicit environment
// tag always wins; untagged records fall back to the legacy inference table.
// EnvironmentUnknown is returned when nothing matches.
func Classify(r StepResult) Environment {
	switch env := Environment(r.Environment); env {
	case EnvironmentBrowser, EnvironmentTerminal, EnvironmentFileSystem, EnvironmentGeneralResponse:
		return env
	}
	for _, rule := range legacyRules {
		if rule.matches(r) {
			return rule.environment
		}
	}
	return EnvironmentUnknown
}

// ActionKindOf lets an explicit review, extraction or optional tag take
// precedence over url and query.
func ActionKindOf(r StepResult) ActionKind {
	switch kind := ActionKind(r.ActionType); kind {
	case ActionReview, ActionExtraction, ActionOptional:
		return kind
	}
	switch {
	case r.URL != "":
		return ActionNavigation
	case r.Query != "":
		return ActionSearch
	}
	return ActionGeneric
}

func ExtractionKindOf(r StepResult) ExtractionKind {
	switch kind := ExtractionKind(r.ExtractionType); kind {
	case ExtractionHeadlines, ExtractionProsCons, ExtractionTrends, ExtractionSummary:
		return kind
	}
	return ExtractionGeneral
}
