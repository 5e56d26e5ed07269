//go:build tools
// +build tools

// Package tools pins development tool dependencies.
// Blank imports below keep `go mod tidy` from dropping tools that no
// production package imports; they are never compiled into the worker.
package tools

import (
	_ "go.uber.org/mock/mockgen" // mock generation for internal/core ports (see internal/mocks/generate.go)
)

// Tools installed globally via `go install` and not tracked in go.mod:
//
// Air - Live reload for Go apps
//   Install: go install github.com/air-verse/air@v1.63.0
//   Version: v1.63.0 (pinned 2025-01-01)
//   Docs: https://github.com/air-verse/air
