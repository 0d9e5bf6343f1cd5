// Package migrations holds the SurrealQL schema and applies it at startup.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/momoso/api/internal/database"
)

//go:embed *.surql
var files embed.FS

// Files returns the migration file names in apply order
func Files() ([]string, error) {
	names, err := fs.Glob(files, "*.surql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Apply runs every migration in order. Statements use IF NOT EXISTS, so
// applying twice is harmless.
func Apply(ctx context.Context, db database.Database) error {
	names, err := Files()
	if err != nil {
		return err
	}

	for _, name := range names {
		body, err := files.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if err := db.Execute(ctx, string(body), nil); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
	}
	return nil
}
