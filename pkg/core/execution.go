package core

// ExecutionStatus is the lifecycle state of a bulk-send execution.
type ExecutionStatus string

// Execution status constants.
const (
	ExecutionQueued    ExecutionStatus = "queued"
	ExecutionRunning   ExecutionStatus = "running"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
	ExecutionCancelled ExecutionStatus = "cancelled"
)

// IsTerminal reports whether no further progress will be reported.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionCompleted, ExecutionFailed, ExecutionCancelled:
		return true
	default:
		return false
	}
}

// IsActive reports whether the execution is queued or running.
func (s ExecutionStatus) IsActive() bool {
	return s == ExecutionQueued || s == ExecutionRunning
}

// ChannelType is a delivery channel.
type ChannelType string

// Supported delivery channels.
const (
	ChannelWhatsApp ChannelType = "whatsapp"
	ChannelEmail    ChannelType = "email"
)

// Valid reports whether the channel is supported.
func (c ChannelType) Valid() bool {
	return c == ChannelWhatsApp || c == ChannelEmail
}

// Progress is one execution progress snapshot pushed over the websocket.
// A new snapshot fully replaces the previous one.
type Progress struct {
	Status          ExecutionStatus `json:"status"`
	Processed       int             `json:"processed"`
	Total           int             `json:"total"`
	Success         int             `json:"success"`
	Failed          int             `json:"failed"`
	ProgressPercent float64         `json:"progress_percent,omitempty"`
	Error           string          `json:"error,omitempty"`
	Timestamp       string          `json:"timestamp,omitempty"`
}

// Percent returns the completion percentage, computing it when the server omitted it.
func (p Progress) Percent() float64 {
	if p.ProgressPercent > 0 {
		return p.ProgressPercent
	}
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Processed) / float64(p.Total) * 100
}

// Execution is the summary returned by GET /execution/{id}.
type Execution struct {
	ID              int64           `json:"execution_id"`
	TemplateID      int64           `json:"template_id,omitempty"`
	Status          ExecutionStatus `json:"status"`
	ChannelType     ChannelType     `json:"channel_type,omitempty"`
	Total           int             `json:"total"`
	Processed       int             `json:"processed"`
	Success         int             `json:"success"`
	Failed          int             `json:"failed"`
	CreatedAt       *Timestamp      `json:"created_at,omitempty"`
	StartedAt       *Timestamp      `json:"started_at,omitempty"`
	CompletedAt     *Timestamp      `json:"completed_at,omitempty"`
	DurationSeconds *float64        `json:"duration_seconds,omitempty"`
}

// RunExecutionRequest holds the form fields of POST /execution/run.
type RunExecutionRequest struct {
	TemplateID      string
	Channel         ChannelType
	RecipientColumn string
	IntegrationID   int64
	FilePath        string
}

// LogEntry is one delivery log row.
type LogEntry struct {
	Recipient  string     `json:"recipient"`
	Status     string     `json:"status"`
	Error      string     `json:"error,omitempty"`
	RetryCount int        `json:"retry_count"`
	Timestamp  *Timestamp `json:"timestamp,omitempty"`
}

// LogPage is one page of delivery logs.
type LogPage struct {
	TotalLogs int        `json:"total_logs"`
	Page      int        `json:"page"`
	Limit     int        `json:"limit"`
	Logs      []LogEntry `json:"logs"`
}

// TotalPages returns the number of pages at the page's limit, never less than one.
func (p *LogPage) TotalPages() int {
	if p.Limit <= 0 || p.TotalLogs == 0 {
		return 1
	}
	return (p.TotalLogs + p.Limit - 1) / p.Limit
}

// Integration is a configured delivery provider.
type Integration struct {
	ID                 int64       `json:"id"`
	ChannelType        ChannelType `json:"channel_type"`
	ProviderName       string      `json:"provider_name"`
	SenderIdentifier   string      `json:"sender_identifier"`
	RateLimitPerMinute int         `json:"rate_limit_per_minute"`
	IsActive           bool        `json:"is_active"`
	CreatedAt          *Timestamp  `json:"created_at,omitempty"`
}
