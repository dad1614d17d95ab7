package docservice

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/starford/keyline/internal/apperr"
	"github.com/starford/keyline/internal/models"
	"github.com/starford/keyline/internal/timeline"
)

// CompileOutput is a compiled document.
type CompileOutput struct {
	timeline.CompileResult
	Path       string `json:"path"`
	ModuleName string `json:"module_name"`
}

// ExportResult describes a compiled module written to the exports directory.
type ExportResult struct {
	CompileOutput
	File string `json:"file"`
	Size int    `json:"size"`
}

// Compile assembles the playback module of p. An empty module uses the
// configured default.
func (s *Service) Compile(_ context.Context, p, module string) (*CompileOutput, error) {
	c, err := s.acquire(p)
	if err != nil {
		return nil, err
	}
	defer c.mu.Unlock()
	if module == "" {
		module = s.moduleName
	}
	res, err := c.tl.GetScript(timeline.CompileOptions{ModuleName: module})
	if err != nil {
		return nil, err
	}
	return &CompileOutput{CompileResult: res, Path: c.path, ModuleName: module}, nil
}

// Export compiles p and writes the module next to its library path in the
// exports directory, with the script extension.
func (s *Service) Export(ctx context.Context, p, module string) (*ExportResult, error) {
	if s.exports == nil {
		return nil, fmt.Errorf("docservice: no exports directory configured: %w", apperr.ErrInvalidState)
	}
	out, err := s.Compile(ctx, p, module)
	if err != nil {
		return nil, err
	}
	file := ScriptPath(out.Path)
	if err := s.exports.Write(file, []byte(out.Script)); err != nil {
		return nil, err
	}
	s.logger.Info("module exported",
		slog.String("path", out.Path),
		slog.String("file", file),
		slog.Int("skipped", len(out.Skipped)))
	return &ExportResult{CompileOutput: *out, File: file, Size: len(out.Script)}, nil
}

// ScriptPath maps a document path to the path of its compiled module.
func ScriptPath(docPath string) string {
	return strings.TrimSuffix(path.Clean(docPath), models.DocumentExt) + models.ScriptExt
}

// CompileDocument compiles raw document bytes without a service, as the
// command line does.
func CompileDocument(data []byte, module string, logger *slog.Logger) (timeline.CompileResult, error) {
	doc, err := models.ParseDocument(data)
	if err != nil {
		return timeline.CompileResult{}, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	tl := timeline.New(timeline.WithLogger(logger))
	defer tl.Close()
	if err := tl.UseSave(doc); err != nil {
		return timeline.CompileResult{}, err
	}
	return tl.GetScript(timeline.CompileOptions{ModuleName: module})
}
