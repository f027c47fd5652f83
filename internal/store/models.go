package store

import "time"

// Integration statuses.
const (
	StatusConnected = "connected"
	StatusBroken    = "broken"
	StatusUnknown   = "unknown"
)

// Integration types the test engine branches on. Other types are stored
// verbatim and go through the general credential path.
const (
	TypeAPIKey             = "api_key"
	TypeCLIAuth            = "cli_auth"
	TypeCredentialProvider = "credential_provider"
	TypeMCPPlugin          = "mcp_plugin"
	TypeMCPServer          = "mcp_server"
	TypeWebhook            = "webhook"
	TypeCLITool            = "cli_tool"
)

// Health check target types and statuses.
const (
	TargetCapability  = "capability"
	TargetIntegration = "integration"

	CheckPass = "pass"
	CheckFail = "fail"
	CheckWarn = "warn"
	CheckSkip = "skip"
)

type Integration struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Type              string     `json:"type"`
	Provider          string     `json:"provider,omitempty"`
	Status            string     `json:"status"`
	CredentialSource  string     `json:"credential_source"`
	Description       string     `json:"description,omitempty"`
	LastValidated     *time.Time `json:"last_validated"`
	ValidationMessage *string    `json:"validation_message"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type HealthCheck struct {
	ID         string    `json:"id"`
	TargetType string    `json:"target_type"`
	TargetID   string    `json:"target_id"`
	Status     string    `json:"status"`
	Message    string    `json:"message"`
	DurationMS int64     `json:"duration_ms"`
	CheckedAt  time.Time `json:"checked_at"`
}

// StatusUpdate is the live-status triple written after a test.
type StatusUpdate struct {
	Status  string
	Message string
	At      time.Time
}
