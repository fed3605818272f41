package types

type TableRenderer interface {
	Headers() []string
	Rows() [][]string
	EmptyMessage() string
}

type TableRenderable interface {
	AsTableRenderer() TableRenderer
}

// OutputFormat selects how command results are printed.
type OutputFormat string

const (
	OutputFormatTable OutputFormat = "table"
	OutputFormatJSON  OutputFormat = "json"
)

// CLIError is the stable, tool-owned error shape surfaced to users.
type CLIError struct {
	Code            string                 `json:"code"`
	Message         string                 `json:"message"`
	ReplyCode       int                    `json:"replyCode,omitempty"`
	Retryable       bool                   `json:"retryable"`
	SuggestedAction string                 `json:"suggestedAction,omitempty"`
	Context         map[string]interface{} `json:"context,omitempty"`
}

type CLIWarning struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// CLIOutput wraps a command result for JSON output.
type CLIOutput struct {
	SchemaVersion string       `json:"schemaVersion"`
	TraceID       string       `json:"traceId"`
	Command       string       `json:"command"`
	Data          interface{}  `json:"data,omitempty"`
	Warnings      []CLIWarning `json:"warnings,omitempty"`
	Errors        []CLIError   `json:"errors,omitempty"`
}

// GlobalFlags holds the persistent flags shared by every command.
type GlobalFlags struct {
	ConfigFile string
	Debug      bool
	LogFile    string
	NoLog      bool
	Output     OutputFormat
	Quiet      bool
}
