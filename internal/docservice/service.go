// Package docservice coordinates the document library, the index and the
// open editing sessions.
package docservice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/starford/keyline/internal/apperr"
	"github.com/starford/keyline/internal/checksum"
	"github.com/starford/keyline/internal/compiler"
	"github.com/starford/keyline/internal/index"
	"github.com/starford/keyline/internal/models"
	"github.com/starford/keyline/internal/parser"
	"github.com/starford/keyline/internal/sse"
	"github.com/starford/keyline/internal/storage"
	"github.com/starford/keyline/internal/timeline"
)

// Notifier receives change and preview events. *sse.Broker implements it.
type Notifier interface {
	Publish(sse.Event)
	PublishDocumentEvent(kind, path string)
	PublishPreviewTime(path string, t float64)
}

type nopNotifier struct{}

func (nopNotifier) Publish(sse.Event) {}
func (nopNotifier) PublishDocumentEvent(string, string) {}
func (nopNotifier) PublishPreviewTime(string, float64) {}

// Options configure a Service.
type Options struct {
	// Exports receives compiled playback modules. Export fails when nil.
	Exports storage.Provider
	// Notifier receives events; nil drops them.
	Notifier Notifier
	// ModuleName is the default page-script key of compiled modules.
	ModuleName string
	// FrameInterval paces preview playback.
	FrameInterval time.Duration
	// HistoryLimit bounds each session's undo stack.
	HistoryLimit int
	Logger       *slog.Logger
}

// DocumentDetail is the full representation of a document.
type DocumentDetail struct {
	Path      string           `json:"path"`
	Name      string           `json:"name"`
	Checksum  string           `json:"checksum"`
	Document  *models.Document `json:"document"`
	Targets   []string         `json:"targets"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Service coordinates storage, index and editing sessions.
type Service struct {
	store   storage.Provider
	exports storage.Provider
	db      index.DocumentIndex
	notify  Notifier
	logger  *slog.Logger

	moduleName    string
	frameInterval time.Duration
	historyLimit  int

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool
}

// NewService creates a new document service.
func NewService(store storage.Provider, db index.DocumentIndex, opts Options) *Service {
	s := &Service{
		store:         store,
		exports:       opts.Exports,
		db:            db,
		notify:        opts.Notifier,
		logger:        opts.Logger,
		moduleName:    opts.ModuleName,
		frameInterval: opts.FrameInterval,
		historyLimit:  opts.HistoryLimit,
		sessions:      make(map[string]*session),
	}
	if s.notify == nil {
		s.notify = nopNotifier{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.moduleName == "" {
		s.moduleName = compiler.DefaultModuleName
	}
	return s
}

// NormalizePath cleans a library path and appends the document extension
// when it is missing.
func NormalizePath(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if p == "" || p == "." {
		return "", fmt.Errorf("docservice: empty path: %w", apperr.ErrInvalidInput)
	}
	if !strings.HasSuffix(p, models.DocumentExt) {
		p += models.DocumentExt
	}
	return p, nil
}

func (s *Service) read(p string) ([]byte, error) {
	data, err := s.store.Read(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("docservice: %s: %w", p, apperr.ErrNotFound)
	}
	return data, err
}

// GetDocument reads a document from storage and enriches it with its targets.
func (s *Service) GetDocument(_ context.Context, p string) (*DocumentDetail, error) {
	p, err := NormalizePath(p)
	if err != nil {
		return nil, err
	}
	data, err := s.read(p)
	if err != nil {
		return nil, err
	}
	return s.buildDetail(p, data)
}

// CreateDocument validates and writes a new document and indexes it.
func (s *Service) CreateDocument(_ context.Context, p string, content []byte) (*DocumentDetail, error) {
	p, err := NormalizePath(p)
	if err != nil {
		return nil, err
	}
	exists, err := s.store.Exists(p)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("docservice: %s: %w", p, apperr.ErrAlreadyExists)
	}
	if err := Validate(content); err != nil {
		return nil, err
	}
	if err := s.write(p, content, "created"); err != nil {
		return nil, err
	}
	return s.buildDetail(p, content)
}

// UpdateDocument replaces a document with optimistic concurrency. A
// non-empty ifMatch must name the checksum of the stored content, bare or
// as an entity tag. An open session is reloaded from the new content.
func (s *Service) UpdateDocument(_ context.Context, p string, content []byte, ifMatch string) (*DocumentDetail, error) {
	p, err := NormalizePath(p)
	if err != nil {
		return nil, err
	}
	existing, err := s.read(p)
	if err != nil {
		return nil, err
	}
	if ifMatch != "" && !checksum.Matches(ifMatch, checksum.Sum(existing)) {
		return nil, fmt.Errorf("docservice: %s: %w", p, apperr.ErrConflict)
	}
	doc, err := decode(content)
	if err != nil {
		return nil, err
	}
	if sess := s.lookup(p); sess != nil {
		if err := sess.reload(doc, checksum.Sum(content)); err != nil {
			return nil, err
		}
	}
	if err := s.write(p, content, "updated"); err != nil {
		return nil, err
	}
	return s.buildDetail(p, content)
}

// DeleteDocument closes any session and removes the document from storage and index.
func (s *Service) DeleteDocument(_ context.Context, p string) error {
	p, err := NormalizePath(p)
	if err != nil {
		return err
	}
	err = s.retire(p, func() error {
		if err := s.store.Delete(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("docservice: %s: %w", p, apperr.ErrNotFound)
			}
			return err
		}
		return s.db.DeleteDocument(p)
	})
	if err != nil {
		return err
	}
	s.notify.PublishDocumentEvent("deleted", p)
	return nil
}

// MoveDocument renames a document within the library. Any session on the
// old path is closed first.
func (s *Service) MoveDocument(_ context.Context, from, to string) (*DocumentDetail, error) {
	from, err := NormalizePath(from)
	if err != nil {
		return nil, err
	}
	to, err = NormalizePath(to)
	if err != nil {
		return nil, err
	}
	if from == to {
		return nil, fmt.Errorf("docservice: move %s onto itself: %w", from, apperr.ErrInvalidInput)
	}
	var data []byte
	err = s.retire(from, func() error {
		var err error
		if data, err = s.read(from); err != nil {
			return err
		}
		if err := s.store.Move(from, to); err != nil {
			if errors.Is(err, fs.ErrExist) {
				return fmt.Errorf("docservice: %s: %w", to, apperr.ErrAlreadyExists)
			}
			return err
		}
		if err := s.db.DeleteDocument(from); err != nil {
			return err
		}
		return index.IndexFile(s.db, to, data)
	})
	if err != nil {
		return nil, err
	}
	s.notify.PublishDocumentEvent("deleted", from)
	s.notify.PublishDocumentEvent("created", to)
	return s.buildDetail(to, data)
}

// ListDocuments returns paginated document summaries.
func (s *Service) ListDocuments(_ context.Context, limit, offset int, sort string) ([]models.DocumentSummary, int, error) {
	rows, total, err := s.db.ListDocuments(limit, offset, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]models.DocumentSummary, len(rows))
	for i, r := range rows {
		sels, err := s.db.Targets(r.Path)
		if err != nil {
			return nil, 0, err
		}
		items[i] = models.DocumentSummary{
			Path:       r.Path,
			Name:       r.Name,
			Length:     r.Length,
			TrackCount: r.TrackCount,
			Selectors:  nonNilSlice(sels),
			Eases:      nonNilSlice(r.Eases),
			Triggers:   r.Triggers,
			Checksum:   r.Checksum,
			UpdatedAt:  r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates full-text search to the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Targeting returns the documents that animate selector.
func (s *Service) Targeting(_ context.Context, selector string) ([]string, error) {
	out, err := s.db.Targeting(strings.TrimSpace(selector))
	return nonNilSlice(out), err
}

// HandleExternalChange keeps open sessions in step with edits made outside
// the service. It matches index.EventCallback.
func (s *Service) HandleExternalChange(kind, p string) {
	s.notify.PublishDocumentEvent(kind, p)
	sess := s.lookup(p)
	if sess == nil {
		return
	}
	if kind == index.EventDeleted {
		s.closeSession(p)
		return
	}
	data, err := s.store.Read(p)
	if err != nil {
		return
	}
	cs := checksum.Sum(data)
	if cs == sess.checksum() {
		return
	}
	doc, err := decode(data)
	if err != nil {
		s.logger.Warn("external edit left document unreadable", slog.String("path", p), slog.String("error", err.Error()))
		return
	}
	if err := sess.reload(doc, cs); err != nil {
		s.logger.Warn("session reload failed", slog.String("path", p), slog.String("error", err.Error()))
		return
	}
	s.logger.Info("session reloaded after external edit", slog.String("path", p))
}

// write stores content, reindexes it and announces the change.
func (s *Service) write(p string, content []byte, kind string) error {
	if err := s.store.Write(p, content); err != nil {
		return err
	}
	if err := index.IndexFile(s.db, p, content); err != nil {
		return err
	}
	s.notify.PublishDocumentEvent(kind, p)
	return nil
}

func (s *Service) buildDetail(p string, data []byte) (*DocumentDetail, error) {
	doc, err := models.ParseDocument(data)
	if err != nil {
		return nil, err
	}
	targets, err := s.db.Targets(p)
	if err != nil {
		return nil, err
	}
	updated := time.Now()
	if row, err := s.db.GetDocument(p); err == nil {
		updated = row.UpdatedAt
	}
	return &DocumentDetail{
		Path:      p,
		Name:      parser.DisplayName(p, doc.Name),
		Checksum:  checksum.Sum(data),
		Document:  doc,
		Targets:   nonNilSlice(targets),
		UpdatedAt: updated,
	}, nil
}

// Validate reports whether content is a loadable document.
func Validate(content []byte) error {
	_, err := decode(content)
	return err
}

// decode parses content and checks that a timeline accepts it.
func decode(content []byte) (*models.Document, error) {
	doc, err := models.ParseDocument(content)
	if err != nil {
		return nil, err
	}
	tl := timeline.New()
	defer tl.Close()
	if err := tl.UseSave(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
