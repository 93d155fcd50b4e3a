package collector

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Gustavofrb/relatorio-mensal/internal/core"
	"github.com/Gustavofrb/relatorio-mensal/internal/period"
)

// File names read by FileCollector.
var fileNames = map[core.Source]string{
	core.SourceBookings:   "bookings.json",
	core.SourceProperties: "properties.json",
	core.SourceFees:       "fees.json",
	core.SourceFeedback:   "feedback.csv",
	core.SourceCosts:      "costs.csv",
}

// FileCollector reads the five sources from a directory. Payloads use the
// same shapes as the upstream API. A month subdirectory (dir/2025-06/) takes
// precedence over the directory itself.
type FileCollector struct {
	dir string
}

func NewFileCollector(dir string) *FileCollector {
	return &FileCollector{dir: dir}
}

func (c *FileCollector) Collect(ctx context.Context, month period.Period) (core.RawData, error) {
	dir := c.dir
	if info, err := os.Stat(filepath.Join(dir, month.String())); err == nil && info.IsDir() {
		dir = filepath.Join(dir, month.String())
	}
	slog.InfoContext(ctx, "Collecting source data from files", "month", month.String(), "dir", dir)

	payloads := make(map[core.Source][]record, len(fileNames))
	headers := make(map[core.Source][]string, len(fileNames))
	for _, source := range core.Sources {
		if err := ctx.Err(); err != nil {
			return core.RawData{}, err
		}
		rows, header, err := c.read(filepath.Join(dir, fileNames[source]), source)
		if err != nil {
			return core.RawData{}, err
		}
		payloads[source] = rows
		headers[source] = header
	}
	return assemble(payloads, headers)
}

// read decodes one file. A missing file is an empty source.
func (c *FileCollector) read(path string, source core.Source) ([]record, []string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Source file missing, treating as empty", "source", string(source), "file", path)
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", source, err)
	}
	defer f.Close()

	if filepath.Ext(path) == ".csv" {
		return decodeCSV(source, f)
	}
	return decodeJSON(source, f)
}
