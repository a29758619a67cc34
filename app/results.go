package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/kilianp07/moeopf/config"
	"github.com/kilianp07/moeopf/core/search"
	"github.com/kilianp07/moeopf/pkg/export"
)

var writers = []struct {
	format string
	write  func(io.Writer, export.Front) error
}{
	{"csv", export.WriteCSV},
	{"json", export.WriteJSON},
	{"html", export.WriteFrontChart},
}

// WriteResults writes the archive of res as pareto.<format> in cfg.Dir for
// every selected format, in csv, json, html order, and returns the written
// paths.
func WriteResults(cfg config.ResultsConfig, ids []string, res *search.RunResult) ([]string, error) {
	if len(cfg.Formats) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("results dir: %w", err)
	}
	front := export.NewFront(res.RunID, ids, res.Archive)
	var written []string
	for _, w := range writers {
		if !cfg.Wants(w.format) {
			continue
		}
		path := filepath.Join(cfg.Dir, "pareto."+w.format)
		if err := writeFile(path, front, w.write); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func writeFile(path string, f export.Front, write func(io.Writer, export.Front) error) (err error) {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
	}()
	if err := write(out, f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
