// Package service exposes the inspection workflows over Arrow Flight:
// DoAction carries JSON request/response envelopes per workflow, DoGet
// streams decoded buffer instances as Arrow record batches.
package service

import (
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow/flight"
	"github.com/apache/arrow-go/v18/arrow/memory"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/framesift/framesift/internal/errors"
	"github.com/framesift/framesift/internal/inspect"
	"github.com/framesift/framesift/internal/logging"
	"github.com/framesift/framesift/internal/metrics"
	"github.com/framesift/framesift/internal/replay"
)

// defaultMaxSessions bounds how many captures stay loaded at once.
const defaultMaxSessions = 4

// ControllerOpener loads the replay surface behind a capture reference.
// The default opener treats the reference as a dump file path.
type ControllerOpener func(capture string) (replay.Controller, error)

// FileOpener loads static dump files from disk.
func FileOpener(capture string) (replay.Controller, error) {
	return replay.LoadDump(capture)
}

// session is one loaded capture and its inspector.
type session struct {
	capture   string
	ctrl      replay.Controller
	inspector *inspect.Inspector
	loadedAt  time.Time
}

// InspectionServer serves the Flight surface. Sessions are created
// lazily per capture reference and kept in a bounded LRU so repeated
// requests against the same capture reuse its indexes and layout cache.
type InspectionServer struct {
	flight.BaseFlightServer

	opener      ControllerOpener
	mem         memory.Allocator
	logger      *logging.StructuredLogger
	sessions    *lru.Cache[string, *session]
	maxSessions int
	mu          sync.Mutex // serializes session creation, not lookups
}

// Option configures an InspectionServer.
type Option func(*InspectionServer)

// WithLogger routes server logging somewhere other than the discard
// logger.
func WithLogger(logger *logging.StructuredLogger) Option {
	return func(s *InspectionServer) {
		if logger != nil {
			s.logger = logger.WithComponent("service")
		}
	}
}

// WithAllocator replaces the Arrow allocator used for DoGet batches.
func WithAllocator(mem memory.Allocator) Option {
	return func(s *InspectionServer) {
		if mem != nil {
			s.mem = mem
		}
	}
}

// WithMaxSessions bounds the loaded-capture cache.
func WithMaxSessions(n int) Option {
	return func(s *InspectionServer) {
		if n > 0 {
			sessions, err := lru.New[string, *session](n)
			if err == nil {
				s.sessions = sessions
				s.maxSessions = n
			}
		}
	}
}

// NewInspectionServer builds a server that loads captures through opener.
func NewInspectionServer(opener ControllerOpener, opts ...Option) *InspectionServer {
	if opener == nil {
		opener = FileOpener
	}
	sessions, _ := lru.New[string, *session](defaultMaxSessions)
	s := &InspectionServer{
		opener:      opener,
		mem:         memory.NewGoAllocator(),
		logger:      logging.DiscardLogger(),
		sessions:    sessions,
		maxSessions: defaultMaxSessions,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// session returns the loaded session for a capture reference, opening it
// on first use.
func (s *InspectionServer) session(capture string) (*session, error) {
	if capture == "" {
		return nil, errors.NewValidationError("service.session",
			"capture reference is required")
	}
	if sess, ok := s.sessions.Get(capture); ok {
		return sess, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions.Get(capture); ok {
		return sess, nil
	}

	ctrl, err := s.opener(capture)
	if err != nil {
		return nil, err
	}
	sess := &session{
		capture:   capture,
		ctrl:      ctrl,
		inspector: inspect.New(ctrl, inspect.WithLogger(s.logger)),
		loadedAt:  time.Now(),
	}
	s.sessions.Add(capture, sess)
	return sess, nil
}

// observeFlight records one Flight method's outcome and duration.
func observeFlight(method string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.FlightOperationsTotal.WithLabelValues(method, status).Inc()
	metrics.FlightDurationSeconds.WithLabelValues(method).Observe(time.Since(start).Seconds())
}
