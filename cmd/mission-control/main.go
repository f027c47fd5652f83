package main

import (
	"os"

	"missioncontrol/internal/cli"
)

// mission-control is the integration test engine entrypoint.
//
// Endpoints (serve):
// - POST /integrations/{id}/test
// - GET  /integrations, /integrations/{id}, /integrations/{id}/health-checks
// - GET  /events (SSE), /metrics, /healthz
// - POST /mcp (JSON-RPC tools)
//
// State is persisted in PostgreSQL (database.url or DATABASE_URL).
func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
