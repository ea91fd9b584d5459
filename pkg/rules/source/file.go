package source

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"outpost-hq/warden/pkg/rules"
	"outpost-hq/warden/pkg/store"
)

// DirSource loads Rego rule modules from .rego files in a directory.
// Files are loaded in lexical order so the evaluation order is stable
// across restarts. The module path comes from each file's package
// declaration, not from the filename.
type DirSource struct {
	path   string
	logger *slog.Logger
}

// NewDirSource creates a directory-backed rule module source.
func NewDirSource(path string, logger *slog.Logger) *DirSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirSource{
		path:   path,
		logger: logger.With("component", "rules.source"),
	}
}

// Path returns the watched directory.
func (s *DirSource) Path() string {
	return s.path
}

// Load reads every .rego file under the directory and returns the parsed
// records in lexical path order. A file that fails to parse is skipped
// with a warning rather than failing the whole load, so one broken file
// cannot take down the rest of the rule set.
func (s *DirSource) Load() ([]store.RuleModule, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat rule directory %q: %w", s.path, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("rule path %q is not a directory", s.path)
	}

	var paths []string
	err = filepath.Walk(s.path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if strings.HasPrefix(filepath.Base(path), ".") && path != s.path {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) == ".rego" && !strings.HasPrefix(filepath.Base(path), ".") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk rule directory %q: %w", s.path, err)
	}
	sort.Strings(paths)

	records := make([]store.RuleModule, 0, len(paths))
	for _, path := range paths {
		record, err := s.loadFile(path)
		if err != nil {
			s.logger.Warn("skipping rule file", "path", path, "error", err)
			continue
		}
		records = append(records, *record)
	}

	s.logger.Info("loaded rule modules from directory",
		"path", s.path, "count", len(records))
	return records, nil
}

// loadFile reads and parses a single .rego file into a rule module record.
func (s *DirSource) loadFile(path string) (*store.RuleModule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}

	name := strings.TrimSuffix(filepath.Base(path), ".rego")
	source := string(data)

	parsed, err := rules.ParseModule("policy."+name, source)
	if err != nil {
		return nil, err
	}

	// The derived data path looks like "data.policy.name"; the module
	// identifier drops the leading document root.
	module := strings.TrimPrefix(parsed.Package.Path.String(), "data.")

	created := time.Now().UTC().Format(time.RFC3339)
	if info, statErr := os.Stat(path); statErr == nil {
		created = info.ModTime().UTC().Format(time.RFC3339)
	}

	rel := path
	if r, relErr := filepath.Rel(s.path, path); relErr == nil {
		rel = r
	}

	return &store.RuleModule{
		ID:        "file:" + rel,
		Name:      name,
		Module:    module,
		Rego:      source,
		CreatedAt: created,
	}, nil
}
