// Package responses defines API response types used by sitedeploy HTTP handlers.
package responses

import "time"

// QueuedResponse is returned by POST /project once the build task is launched.
type QueuedResponse struct {
	Status string     `json:"status"`
	Data   QueuedData `json:"data"`
}

// QueuedData carries the identifier and the address the site will be served at.
type QueuedData struct {
	ProjectSlug string `json:"projectSlug"`
	URL         string `json:"url"`
}

// StatusQueued is the only status the dispatcher reports.
const StatusQueued = "queued"

// HealthResponse represents the health check API response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Component string    `json:"component"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    float64   `json:"uptime"`
	Error     string    `json:"error,omitempty"`
}
