// Package core implements the accessor layer over a pluggable document
// backend: per-domain facades for forms, cases, and ledgers, the system
// action registry, and archive stub reconciliation.
package core

import (
	"context"
	"sync"
	"time"

	"casecore/internal/blob"
	"casecore/internal/feed"
	"casecore/pkg/domain"
)

// ArchiveSignal is invoked after a form archive or unarchive completes and
// its stub is closed. Receivers run synchronously in registration order.
type ArchiveSignal func(form domain.XFormInstance)

// Service owns the backend, the ambient collaborators, and the system action
// registry. Facades are cheap per-domain views; construct them per request.
type Service struct {
	backend   domain.Backend
	blobs     blob.Store
	publisher feed.Publisher
	logger    Logger
	clock     Clock
	metrics   MetricsRecorder
	actions   *ActionRegistry

	signalMu   sync.RWMutex
	archived   []ArchiveSignal
	unarchived []ArchiveSignal
}

// New constructs a service over the given backend.
func New(backend domain.Backend, opts ...Option) *Service {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	svc := &Service{
		backend:   backend,
		blobs:     options.blobs,
		publisher: options.publisher,
		logger:    options.logger,
		clock:     options.clock,
		metrics:   options.metrics,
	}
	svc.actions = newActionRegistry(svc)
	svc.registerBuiltinActions()
	return svc
}

// Backend returns the underlying storage implementation.
func (s *Service) Backend() domain.Backend { return s.backend }

// Actions returns the system action registry.
func (s *Service) Actions() *ActionRegistry { return s.actions }

// Forms returns the form accessor facade scoped to a domain.
func (s *Service) Forms(domainName string) *FormAccessor {
	return &FormAccessor{svc: s, domain: domainName}
}

// Cases returns the case accessor facade scoped to a domain.
func (s *Service) Cases(domainName string) *CaseAccessor {
	return &CaseAccessor{svc: s, domain: domainName}
}

// Ledgers returns the ledger accessor facade scoped to a domain.
func (s *Service) Ledgers(domainName string) *LedgerAccessor {
	return &LedgerAccessor{svc: s, domain: domainName}
}

// OnFormArchived registers a receiver for completed archive operations.
func (s *Service) OnFormArchived(sig ArchiveSignal) {
	s.signalMu.Lock()
	defer s.signalMu.Unlock()
	s.archived = append(s.archived, sig)
}

// OnFormUnarchived registers a receiver for completed unarchive operations.
func (s *Service) OnFormUnarchived(sig ArchiveSignal) {
	s.signalMu.Lock()
	defer s.signalMu.Unlock()
	s.unarchived = append(s.unarchived, sig)
}

func (s *Service) fireArchiveSignals(form domain.XFormInstance, archived bool) {
	s.signalMu.RLock()
	receivers := s.archived
	if !archived {
		receivers = s.unarchived
	}
	receivers = append([]ArchiveSignal(nil), receivers...)
	s.signalMu.RUnlock()
	for _, sig := range receivers {
		sig(form)
	}
}

// observe wraps one accessor operation with metrics and error logging.
func (s *Service) observe(ctx context.Context, operation string, fn func() error) error {
	start := s.clock.Now()
	err := fn()
	if s.metrics != nil {
		s.metrics.Observe(ctx, operation, err == nil, s.clock.Now().Sub(start))
	}
	if err != nil {
		s.logger.Debug("accessor operation failed", "operation", operation, "error", err)
	}
	return err
}

func (s *Service) now() time.Time { return s.clock.Now().UTC() }
