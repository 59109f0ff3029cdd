package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"casecore/internal/blob"
	"casecore/internal/feed"
	"casecore/pkg/domain"
)

// FormAccessor is the per-domain facade over form storage. Reads scoped to a
// domain never leak records from another domain: a form owned elsewhere is
// reported as not found, not as forbidden.
type FormAccessor struct {
	svc    *Service
	domain string
}

// Domain returns the domain this accessor is scoped to.
func (a *FormAccessor) Domain() string { return a.domain }

// GetForm returns the form or FormNotFoundError. Forms owned by another
// domain are indistinguishable from missing forms.
func (a *FormAccessor) GetForm(ctx context.Context, formID string) (domain.XFormInstance, error) {
	var form domain.XFormInstance
	err := a.svc.observe(ctx, "form.get", func() error {
		var err error
		form, err = a.svc.backend.GetForm(formID)
		if err != nil {
			return err
		}
		if form.Domain != a.domain || form.Deleted {
			return domain.FormNotFoundError{FormID: formID}
		}
		return nil
	})
	return form, err
}

// GetForms returns the forms for the given ids. Missing ids and ids owned by
// another domain are omitted; with ordered the results follow input order.
func (a *FormAccessor) GetForms(ctx context.Context, formIDs []string, ordered bool) ([]domain.XFormInstance, error) {
	var out []domain.XFormInstance
	err := a.svc.observe(ctx, "form.get_bulk", func() error {
		forms, err := a.svc.backend.GetForms(formIDs, ordered)
		if err != nil {
			return err
		}
		out = make([]domain.XFormInstance, 0, len(forms))
		for _, f := range forms {
			if f.Domain == a.domain && !f.Deleted {
				out = append(out, f)
			}
		}
		return nil
	})
	return out, err
}

// Exists probes for a form id within the domain.
func (a *FormAccessor) Exists(ctx context.Context, formID string) (bool, error) {
	var ok bool
	err := a.svc.observe(ctx, "form.exists", func() error {
		var err error
		ok, err = a.svc.backend.FormExists(formID, a.domain)
		return err
	})
	return ok, err
}

// GetFormIDsByState enumerates non-deleted form ids in the domain with the
// given state.
func (a *FormAccessor) GetFormIDsByState(ctx context.Context, state domain.FormState) ([]string, error) {
	var ids []string
	err := a.svc.observe(ctx, "form.ids_by_state", func() error {
		var err error
		ids, err = a.svc.backend.GetFormIDsInDomainByState(a.domain, state)
		return err
	})
	return ids, err
}

// IterForms streams every form in the domain with the given state through
// fn in batches. Iteration stops at the first error from fn.
func (a *FormAccessor) IterForms(ctx context.Context, state domain.FormState, batchSize int, fn func(domain.XFormInstance) error) error {
	if batchSize <= 0 {
		batchSize = 100
	}
	ids, err := a.GetFormIDsByState(ctx, state)
	if err != nil {
		return err
	}
	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		forms, err := a.GetForms(ctx, ids[start:end], true)
		if err != nil {
			return err
		}
		for _, form := range forms {
			if err := fn(form); err != nil {
				return err
			}
		}
	}
	return nil
}

// SaveNew persists a new form in the accessor's domain and publishes it on
// the change feed. An empty FormID is assigned by the backend.
func (a *FormAccessor) SaveNew(ctx context.Context, form domain.XFormInstance) (domain.XFormInstance, error) {
	form.Domain = a.domain
	err := a.svc.observe(ctx, "form.save", func() error {
		err := a.svc.backend.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var saveErr error
			form, saveErr = tx.SaveForm(form)
			return saveErr
		})
		if err != nil {
			return err
		}
		a.publishFormSaved(form)
		if form.IsSystemAction() {
			// Replayed action forms arrive through the ordinary save path on
			// restore; only the system pipeline may execute them.
			return a.svc.actions.HandleSystemActionForm(ctx, form)
		}
		return nil
	})
	return form, err
}

// Archive moves a normal form into the archived state through the system
// action pipeline, recording the operation as a replayable action form.
func (a *FormAccessor) Archive(ctx context.Context, formID, userID string) error {
	return a.submitArchiveAction(ctx, formID, userID, true, true)
}

// Unarchive returns an archived form to the normal state.
func (a *FormAccessor) Unarchive(ctx context.Context, formID, userID string) error {
	return a.submitArchiveAction(ctx, formID, userID, false, true)
}

// ArchiveQuietly archives without firing the archived/unarchived receivers,
// for bulk maintenance paths that would otherwise stampede downstream
// listeners. The change feed publication still happens.
func (a *FormAccessor) ArchiveQuietly(ctx context.Context, formID, userID string, archive bool) error {
	return a.submitArchiveAction(ctx, formID, userID, archive, false)
}

func (a *FormAccessor) submitArchiveAction(ctx context.Context, formID, userID string, archive, triggerSignals bool) error {
	op := "form.archive"
	if !archive {
		op = "form.unarchive"
	}
	return a.svc.observe(ctx, op, func() error {
		args, err := json.Marshal(archiveActionArgs{FormID: formID, Archive: archive, TriggerSignals: triggerSignals})
		if err != nil {
			return err
		}
		_, err = a.svc.actions.Submit(ctx, ActionInvocation{
			Name:   ArchiveFormAction,
			Domain: a.domain,
			UserID: userID,
			Args:   args,
		})
		return err
	})
}

// performArchive drives the bracketed state transition. The stub is durable
// before the state write and closed only after the write and case history
// update committed; the feed publication and signals follow the close, so a
// crash at any point leaves either an open stub (re-driven by
// reconciliation) or a completed transition.
func (s *Service) performArchive(ctx context.Context, domainName, formID string, archive bool, userID string, triggerSignals bool) error {
	form, err := s.backend.GetForm(formID)
	if err != nil {
		return err
	}
	if form.Domain != domainName {
		return domain.FormNotFoundError{FormID: formID}
	}
	target := domain.StateNormal
	if archive {
		target = domain.StateArchived
	}
	if form.State == target {
		return nil
	}
	if form.State != domain.StateNormal && form.State != domain.StateArchived {
		return domain.InvalidFormStateError{FormID: formID, State: form.State}
	}

	stub := domain.ArchiveStub{
		StubID:         uuid.NewString(),
		FormID:         formID,
		Domain:         domainName,
		UserID:         userID,
		Archive:        archive,
		TriggerSignals: triggerSignals,
	}
	err = s.backend.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var openErr error
		stub, openErr = tx.OpenArchiveStub(stub)
		return openErr
	})
	if err != nil {
		return fmt.Errorf("open archive stub: %w", err)
	}
	return s.driveArchiveStub(ctx, stub)
}

// driveArchiveStub completes (or re-drives) the transition an open stub
// brackets. Safe to call repeatedly for the same stub; the stub itself
// records whether archive signals fire on completion.
func (s *Service) driveArchiveStub(ctx context.Context, stub domain.ArchiveStub) error {
	var form domain.XFormInstance
	err := s.backend.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var stateErr error
		form, stateErr = tx.SetArchivedState(stub.FormID, stub.Archive, stub.UserID)
		if stateErr != nil {
			return stateErr
		}
		return tx.MarkStubHistoryUpdated(stub.StubID)
	})
	if err != nil {
		s.logger.Warn("archive state write failed", "form_id", stub.FormID, "stub_id", stub.StubID, "error", err)
		return err
	}
	err = s.backend.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.CloseArchiveStub(stub.StubID, s.now())
	})
	if err != nil {
		return fmt.Errorf("close archive stub: %w", err)
	}
	s.publishFormEvent(form)
	if stub.TriggerSignals {
		s.fireArchiveSignals(form, stub.Archive)
	}
	s.logger.Info("form archive state changed", "form_id", form.FormID, "domain", form.Domain, "state", string(form.State))
	return nil
}

// SoftDelete tombstones the given forms. Already-deleted forms keep their
// original stamp; returns the number of newly deleted forms.
func (a *FormAccessor) SoftDelete(ctx context.Context, formIDs []string, deletionID string) (int, error) {
	var n int
	err := a.svc.observe(ctx, "form.soft_delete", func() error {
		return a.svc.backend.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			n, err = tx.SoftDeleteForms(a.domain, formIDs, a.svc.now(), deletionID)
			return err
		})
	})
	return n, err
}

// SoftUndelete clears tombstones; returns the number of restored forms.
func (a *FormAccessor) SoftUndelete(ctx context.Context, formIDs []string) (int, error) {
	var n int
	err := a.svc.observe(ctx, "form.soft_undelete", func() error {
		return a.svc.backend.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			n, err = tx.SoftUndeleteForms(a.domain, formIDs)
			return err
		})
	})
	return n, err
}

// GetAttachmentContent returns the content type and byte stream of a named
// form attachment. The stream is single-read; callers either consume Body
// once or Close without reading.
func (a *FormAccessor) GetAttachmentContent(ctx context.Context, formID, name string) (*domain.AttachmentContent, error) {
	form, err := a.GetForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	for _, att := range form.Attachments {
		if att.Name != name {
			continue
		}
		if a.svc.blobs == nil {
			return nil, fmt.Errorf("attachment %s of form %s: no blob store configured", name, formID)
		}
		_, rc, err := a.svc.blobs.Get(ctx, att.BlobKey)
		if err != nil {
			if errors.Is(err, blob.ErrNotFound) {
				return nil, domain.AttachmentNotFoundError{OwnerID: formID, Name: name}
			}
			return nil, err
		}
		return domain.NewAttachmentContent(att.ContentType, rc), nil
	}
	return nil, domain.AttachmentNotFoundError{OwnerID: formID, Name: name}
}

func (a *FormAccessor) publishFormSaved(form domain.XFormInstance) {
	a.svc.publishFormEvent(form)
}

func (s *Service) publishFormEvent(form domain.XFormInstance) {
	event := feed.FormEvent{
		FormID:      form.FormID,
		Domain:      form.Domain,
		State:       string(form.State),
		Archived:    form.IsArchived(),
		PublishedOn: s.now(),
	}
	if err := s.publisher.PublishFormSaved(event); err != nil {
		s.logger.Warn("form feed publish failed", "form_id", form.FormID, "error", err)
	}
}

func (s *Service) publishCaseEvent(c domain.Case) {
	event := feed.CaseEvent{
		CaseID:      c.CaseID,
		Domain:      c.Domain,
		Closed:      c.Closed,
		PublishedOn: s.now(),
	}
	if err := s.publisher.PublishCaseSaved(event); err != nil {
		s.logger.Warn("case feed publish failed", "case_id", c.CaseID, "error", err)
	}
}
