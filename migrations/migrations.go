// Package migrations embeds the SQL schema so the API, the CLI and the
// integration tests all apply the same files in the same order.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed *.up.sql
var files embed.FS

// Apply runs every *.up.sql file in lexical order. Statements are written
// with IF NOT EXISTS so re-running is harmless.
func Apply(ctx context.Context, db *sql.DB) ([]string, error) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, fmt.Errorf("Apply: read dir: %w", err)
	}

	var upFiles []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			upFiles = append(upFiles, e.Name())
		}
	}
	sort.Strings(upFiles)

	for _, f := range upFiles {
		content, err := files.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("Apply: read %s: %w", f, err)
		}
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return nil, fmt.Errorf("Apply: execute %s: %w", f, err)
		}
	}

	return upFiles, nil
}
