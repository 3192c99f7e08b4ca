// Package handlers contains HTTP handlers for the sitedeploy HTTP API.
//
// This package provides handlers for:
//   - The deployment endpoint (POST /project)
//   - Health and readiness endpoints (monitoring)
//   - Shared response helper functions
//
// Errors are written through the foundation/errors HTTP adapter so every
// failure carries the same {error, code, details} shape.
package handlers
