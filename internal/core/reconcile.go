package core

import (
	"context"
	"errors"
	"time"

	"casecore/pkg/domain"
)

// ReconcileUnfinishedArchives re-drives archive operations whose stub was
// left open longer than olderThan, which marks a process that died between
// the stub open and the stub close. Stubs whose form can never reach the
// intended state (deleted form, terminal state) are closed and logged rather
// than retried forever. Returns the number of stubs that were completed.
func (s *Service) ReconcileUnfinishedArchives(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)
	stubs, err := s.backend.GetOpenArchiveStubs(cutoff)
	if err != nil {
		return 0, err
	}
	completed := 0
	for _, stub := range stubs {
		err := s.driveArchiveStub(ctx, stub)
		if err == nil {
			completed++
			continue
		}
		var invalidState domain.InvalidFormStateError
		var notFound domain.FormNotFoundError
		if errors.As(err, &invalidState) || errors.As(err, &notFound) {
			// unreconcilable; close the stub so it stops resurfacing
			closeErr := s.backend.RunInTransaction(ctx, func(tx domain.Transaction) error {
				return tx.CloseArchiveStub(stub.StubID, s.now())
			})
			if closeErr != nil {
				return completed, closeErr
			}
			s.logger.Warn("abandoned unreconcilable archive stub",
				"stub_id", stub.StubID, "form_id", stub.FormID, "error", err)
			continue
		}
		return completed, err
	}
	return completed, nil
}
