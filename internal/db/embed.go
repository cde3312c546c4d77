package db

import (
	"embed"
	"io/fs"
	"os"
)

//go:embed migrations
var migrationsFS embed.FS

// DevMode switches getMigrationsFS to read migrations from the working tree
// instead of the embedded copy, so migration edits don't require a rebuild.
var DevMode = false

// getMigrationsFS returns a filesystem whose migrations/ subdirectory holds
// the golang-migrate SQL files.
func getMigrationsFS() (fs.FS, error) {
	if DevMode {
		if _, err := os.Stat("internal/db/migrations"); err != nil {
			return nil, err
		}
		return os.DirFS("internal/db"), nil
	}
	return migrationsFS, nil
}
