// Package file writes each batch to a JSON file named
// <category>_<YYYYMMDD_HHMMSS>.json under a base directory.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/JakeFAU/multisource-scraper/internal/clock/system"
	"github.com/JakeFAU/multisource-scraper/internal/scrape"
	"github.com/JakeFAU/multisource-scraper/internal/sink"
)

var validCategory = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Config captures the sink parameters.
type Config struct {
	// Dir is created when missing and must be writable.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// Indent pretty-prints the JSON.
	Indent bool `mapstructure:"indent" yaml:"indent"`
}

// Sink writes batches to the local filesystem.
type Sink struct {
	dir    string
	indent bool
	clock  scrape.Clock
	open   func(path string) (io.WriteCloser, error)
}

var (
	_ scrape.Sink         = (*Sink)(nil)
	_ scrape.SampleReader = (*Sink)(nil)
)

// New checks that cfg.Dir exists (creating it when missing) and is
// writable. A nil clock uses the system clock.
func New(cfg Config, clock scrape.Clock) (*Sink, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, errors.New("sink.file.dir is required")
	}
	info, err := os.Stat(cfg.Dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if mkErr := os.MkdirAll(cfg.Dir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create sink directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat sink directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("sink path %s is not a directory", cfg.Dir)
	}

	marker := filepath.Join(cfg.Dir, ".writable_test")
	if err := os.WriteFile(marker, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("sink directory is not writable: %w", err)
	}
	if err := os.Remove(marker); err != nil {
		return nil, fmt.Errorf("remove writable marker: %w", err)
	}
	if clock == nil {
		clock = system.New()
	}
	return &Sink{dir: filepath.Clean(cfg.Dir), indent: cfg.Indent, clock: clock, open: createExclusive}, nil
}

// createExclusive fails with os.ErrExist rather than overwrite a batch.
func createExclusive(path string) (io.WriteCloser, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) // #nosec G304 -- path is confined to the sink directory.
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Store implements scrape.Sink. A second batch of the same category within
// one second gets a numeric suffix instead of overwriting the first.
func (s *Sink) Store(ctx context.Context, category string, records []scrape.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !validCategory.MatchString(category) {
		return fmt.Errorf("invalid category %q", category)
	}
	data, err := s.encode(records)
	if err != nil {
		return err
	}
	base := category + "_" + sink.Stamp(s.clock.Now())
	for n := 0; ; n++ {
		name := base + ".json"
		if n > 0 {
			name = fmt.Sprintf("%s_%d.json", base, n)
		}
		path, err := s.path(name)
		if err != nil {
			return err
		}
		f, err := s.open(path)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("create batch file: %w", err)
		}
		// A partial file would later be served by Latest.
		if _, err := f.Write(data); err != nil {
			_ = f.Close()
			_ = os.Remove(path)
			return fmt.Errorf("write batch file: %w", err)
		}
		if err := f.Close(); err != nil {
			_ = os.Remove(path)
			return fmt.Errorf("close batch file: %w", err)
		}
		return nil
	}
}

func (s *Sink) encode(records []scrape.Record) ([]byte, error) {
	if records == nil {
		records = []scrape.Record{}
	}
	var (
		data []byte
		err  error
	)
	if s.indent {
		data, err = json.MarshalIndent(records, "", "  ")
	} else {
		data, err = json.Marshal(records)
	}
	if err != nil {
		return nil, fmt.Errorf("marshal batch: %w", err)
	}
	return data, nil
}

// path joins name onto the base directory and rejects anything escaping it.
func (s *Sink) path(name string) (string, error) {
	full := filepath.Clean(filepath.Join(s.dir, name))
	if !strings.HasPrefix(full, s.dir+string(filepath.Separator)) {
		return "", errors.New("path traversal detected")
	}
	return full, nil
}

// Latest implements scrape.SampleReader by reading the newest batch file of
// category. It returns nil when the category has no files.
func (s *Sink) Latest(ctx context.Context, category string, limit int) ([]scrape.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !validCategory.MatchString(category) {
		return nil, fmt.Errorf("invalid category %q", category)
	}
	name, ok, err := s.newest(category)
	if err != nil || !ok {
		return nil, err
	}
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path is confined to the sink directory.
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	var records []scrape.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode batch file %s: %w", name, err)
	}
	return sink.Head(records, limit), nil
}

// batchName matches "<stamp>[_<n>].json" after the category prefix.
var batchName = regexp.MustCompile(`^(\d{8}_\d{6})(?:_(\d+))?\.json$`)

// newest returns the latest batch file name for category, ordered by the
// embedded timestamp and then the collision suffix.
func (s *Sink) newest(category string) (string, bool, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", false, fmt.Errorf("list sink directory: %w", err)
	}
	var (
		best      string
		bestStamp string
		bestN     = -1
	)
	prefix := category + "_"
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		m := batchName.FindStringSubmatch(strings.TrimPrefix(e.Name(), prefix))
		if m == nil {
			continue
		}
		n := 0
		if m[2] != "" {
			n, _ = strconv.Atoi(m[2])
		}
		if m[1] > bestStamp || (m[1] == bestStamp && n > bestN) {
			best, bestStamp, bestN = e.Name(), m[1], n
		}
	}
	return best, best != "", nil
}
