package docservice

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/keyline/internal/apperr"
	"github.com/starford/keyline/internal/checksum"
	"github.com/starford/keyline/internal/clock"
	"github.com/starford/keyline/internal/history"
	"github.com/starford/keyline/internal/index"
	"github.com/starford/keyline/internal/models"
	"github.com/starford/keyline/internal/sse"
	"github.com/starford/keyline/internal/timeline"
)

// session is one open document. mu serializes edits and preview frames.
// Service.mu may be held while taking mu, never the other way round.
type session struct {
	path   string
	mu     sync.Mutex
	tl     *timeline.Timeline
	hist   *history.Stack
	ticker *clock.Ticker
	unsub  func()
	sum    string
}

func (c *session) checksum() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sum
}

// reload replaces the session content, pausing any preview first.
func (c *session) reload(doc *models.Document, sum string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.tl.Pause(); err != nil {
		return err
	}
	if err := c.tl.UseSave(doc); err != nil {
		return err
	}
	c.sum = sum
	return nil
}

func (s *Service) lookup(p string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[p]
}

// open returns the session for p, loading the document on first use.
func (s *Service) open(p string) (*session, error) {
	p, err := NormalizePath(p)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("docservice: %w", apperr.ErrClosed)
	}
	if sess, ok := s.sessions[p]; ok {
		return sess, nil
	}

	data, err := s.read(p)
	if err != nil {
		return nil, err
	}
	doc, err := models.ParseDocument(data)
	if err != nil {
		return nil, err
	}

	sess := &session{path: p, hist: history.NewStack(s.historyLimit), sum: checksum.Sum(data)}
	sess.ticker = clock.NewTicker(&sess.mu, s.frameInterval)
	sess.tl = timeline.New(
		timeline.WithScheduler(sess.ticker),
		timeline.WithHistory(sess.hist),
		timeline.WithLogger(s.logger.With(slog.String("document", p))),
	)
	if err := sess.tl.UseSave(doc); err != nil {
		sess.ticker.Stop()
		return nil, err
	}
	sess.unsub = sess.tl.Subscribe(func(e timeline.Event) { s.forward(p, e) })

	s.sessions[p] = sess
	s.logger.Debug("session opened", slog.String("path", p))
	return sess, nil
}

// forward relays preview events of an open timeline to the notifier.
func (s *Service) forward(p string, e timeline.Event) {
	switch e.Kind {
	case timeline.EventChangeTime:
		s.notify.PublishPreviewTime(p, e.Time)
	case timeline.EventTrigger:
		data := map[string]any{"path": p, "time": e.Time, "id": e.Name}
		if e.Trigger != nil {
			data["script"] = e.Trigger.Script
		}
		s.notify.Publish(sse.Event{Type: sse.TypePreviewTrigger, Path: p, Data: data})
	case timeline.EventPlay, timeline.EventPause:
		s.notify.Publish(sse.Event{
			Type: sse.TypePreviewState,
			Path: p,
			Data: map[string]any{"path": p, "state": e.Kind, "time": e.Time},
		})
	}
}

// acquire returns the session of p with its lock held. A session that was
// closed while the caller waited for the lock fails with apperr.ErrClosed.
func (s *Service) acquire(p string) (*session, error) {
	c, err := s.open(p)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.tl.State() == timeline.StateClosed {
		c.mu.Unlock()
		return nil, fmt.Errorf("docservice: %s: %w", c.path, apperr.ErrClosed)
	}
	return c, nil
}

func (s *Service) closeSession(p string) {
	s.mu.Lock()
	sess, ok := s.sessions[p]
	delete(s.sessions, p)
	s.mu.Unlock()
	if !ok {
		return
	}
	sess.close()
}

// retire closes the session of p and runs fn while holding s.mu, so no
// edit can reopen p or write it back until fn has changed the library.
func (s *Service) retire(p string, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[p]; ok {
		delete(s.sessions, p)
		sess.close()
	}
	return fn()
}

func (c *session) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shutdown()
}

// shutdown stops the session. The caller holds c.mu.
func (c *session) shutdown() {
	c.unsub()
	c.tl.Close()
	c.ticker.Stop()
}

// CloseDocument stops the preview of p and drops its session and history.
func (s *Service) CloseDocument(p string) error {
	p, err := NormalizePath(p)
	if err != nil {
		return err
	}
	s.closeSession(p)
	return nil
}

// Close closes every session. Later session calls fail with apperr.ErrClosed.
func (s *Service) Close() {
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.closed = true
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.close()
	}
}

// OpenDocuments returns the paths with an open session.
func (s *Service) OpenDocuments() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sessions))
	for p := range s.sessions {
		out = append(out, p)
	}
	return out
}

// persist writes the session content back to the library. The caller holds c.mu.
func (s *Service) persist(c *session) error {
	data, err := c.tl.GetSave().Marshal()
	if err != nil {
		return fmt.Errorf("docservice: encode %s: %w", c.path, err)
	}
	if err := s.store.Write(c.path, data); err != nil {
		return err
	}
	c.sum = checksum.Sum(data)
	if err := index.IndexFile(s.db, c.path, data); err != nil {
		s.logger.Warn("reindex after edit failed", slog.String("path", c.path), slog.String("error", err.Error()))
	}
	s.notify.PublishDocumentEvent("updated", c.path)
	return nil
}
