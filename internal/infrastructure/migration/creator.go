package migration

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"text/template"
)

const migrationUpTemplate = `-- Migration: {{.Name}}
-- Description: {{.Description}}

`

const migrationDownTemplate = `-- Rollback: {{.Name}}

`

// Migration is one up/down pair on disk.
type Migration struct {
	Version  uint
	Name     string
	UpPath   string
	DownPath string
}

// migrationFile matches golang-migrate's "<version>_<name>.(up|down).sql".
var migrationFile = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)\.(up|down)\.sql$`)

var unsafeChars = regexp.MustCompile(`[^a-z0-9]+`)

// CreateMigration writes an empty up/down pair numbered after the highest
// existing version. Versions are zero-padded to six digits.
func CreateMigration(dir, name, description string) (*Migration, error) {
	slug := sanitizeName(name)
	if slug == "" {
		return nil, fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	existing, err := ListMigrations(os.DirFS(dir))
	if err != nil {
		return nil, err
	}
	var next uint = 1
	if n := len(existing); n > 0 {
		next = existing[n-1].Version + 1
	}

	base := fmt.Sprintf("%06d_%s", next, slug)
	mig := &Migration{
		Version:  next,
		Name:     slug,
		UpPath:   filepath.Join(dir, base+".up.sql"),
		DownPath: filepath.Join(dir, base+".down.sql"),
	}
	data := map[string]string{"Name": name, "Description": description}

	if err := writeTemplate(mig.UpPath, migrationUpTemplate, data); err != nil {
		return nil, fmt.Errorf("failed to create up migration: %w", err)
	}
	if err := writeTemplate(mig.DownPath, migrationDownTemplate, data); err != nil {
		_ = os.Remove(mig.UpPath)
		return nil, fmt.Errorf("failed to create down migration: %w", err)
	}
	return mig, nil
}

// ListMigrations returns the migrations in fsys ordered by version, with
// paths relative to fsys. Files that do not follow the naming scheme are
// ignored.
func ListMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	byVersion := make(map[uint]*Migration)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := migrationFile.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		version, err := strconv.ParseUint(match[1], 10, 64)
		if err != nil {
			continue
		}
		mig, ok := byVersion[uint(version)]
		if !ok {
			mig = &Migration{Version: uint(version), Name: match[2]}
			byVersion[uint(version)] = mig
		}
		if match[3] == "up" {
			mig.UpPath = entry.Name()
		} else {
			mig.DownPath = entry.Name()
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, mig := range byVersion {
		out = append(out, *mig)
	}
	slices.SortFunc(out, func(a, b Migration) int {
		return int(a.Version) - int(b.Version)
	})
	return out, nil
}

func writeTemplate(path, text string, data any) error {
	tmpl, err := template.New("migration").Parse(text)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", path, err)
	}
	defer f.Close()
	return tmpl.Execute(f, data)
}

// sanitizeName lower-cases name and collapses every run of other
// characters into a single underscore.
func sanitizeName(name string) string {
	return strings.Trim(unsafeChars.ReplaceAllString(strings.ToLower(name), "_"), "_")
}
