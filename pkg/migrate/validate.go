package migrate

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"strings"
)

var migrationFileRe = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)

const (
	annotationUp    = "-- +goose Up"
	annotationDown  = "-- +goose Down"
	annotationBegin = "-- +goose StatementBegin"
	annotationEnd   = "-- +goose StatementEnd"
)

// ValidateDir checks the migrations on disk. See ValidateFS.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	return ValidateFS(os.DirFS(dir), ".")
}

// ValidateFS checks every .sql file in dir: the name is
// <14 digit version>_<snake_name>.sql, versions are unique, and the goose
// annotations appear as Up then Down with balanced statement blocks.
func ValidateFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("read migrations %q: %w", dir, err)
	}

	versions := map[string]string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || path.Ext(name) != ".sql" {
			continue
		}
		match := migrationFileRe.FindStringSubmatch(name)
		if match == nil {
			return fmt.Errorf("migration %q: name must be YYYYMMDDHHMMSS_snake_name.sql", name)
		}
		if other, dup := versions[match[1]]; dup {
			return fmt.Errorf("migration %q: version %s already used by %q", name, match[1], other)
		}
		versions[match[1]] = name

		body, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read migration %q: %w", name, err)
		}
		if err := checkAnnotations(body); err != nil {
			return fmt.Errorf("migration %q: %w", name, err)
		}
	}
	return nil
}

func checkAnnotations(body []byte) error {
	var (
		section string
		sawUp   bool
		sawDown bool
		open    bool
	)
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for lineNo := 1; scanner.Scan(); lineNo++ {
		switch strings.TrimSpace(scanner.Text()) {
		case annotationUp:
			if sawUp || sawDown {
				return fmt.Errorf("line %d: unexpected %q", lineNo, annotationUp)
			}
			sawUp, section = true, "up"
		case annotationDown:
			if !sawUp || sawDown {
				return fmt.Errorf("line %d: %q must follow a single %q", lineNo, annotationDown, annotationUp)
			}
			if open {
				return fmt.Errorf("line %d: statement block left open in up section", lineNo)
			}
			sawDown, section = true, "down"
		case annotationBegin:
			if section == "" || open {
				return fmt.Errorf("line %d: unexpected %q", lineNo, annotationBegin)
			}
			open = true
		case annotationEnd:
			if !open {
				return fmt.Errorf("line %d: %q without begin", lineNo, annotationEnd)
			}
			open = false
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	switch {
	case !sawUp:
		return fmt.Errorf("missing %q", annotationUp)
	case !sawDown:
		return fmt.Errorf("missing %q", annotationDown)
	case open:
		return fmt.Errorf("statement block left open in %s section", section)
	}
	return nil
}
