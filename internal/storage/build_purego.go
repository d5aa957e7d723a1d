//go:build !cgo || purego

package storage

// Built without CGO, or with the purego tag: modernc.org/sqlite, a pure Go
// translation of SQLite. No C compiler required.
//
//   CGO_ENABLED=0 go build ./...
//   go build -tags purego ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver in use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
