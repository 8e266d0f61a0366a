//go:build purego

// Pure Go SQLite, for CGO_ENABLED=0 builds: go build -tags purego
package versequiz

import (
	_ "modernc.org/sqlite"
)

const (
	driverName = "sqlite"
	driverType = "purego"
)
