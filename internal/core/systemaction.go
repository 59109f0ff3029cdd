package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"casecore/pkg/domain"
)

// ArchiveFormAction drives a form between normal and archived state.
const ArchiveFormAction = "archive_form"

// ActionHandler executes one system action invocation. Handlers are invoked
// both on first submission and on replay of a recorded action form, so they
// must be idempotent.
type ActionHandler func(ctx context.Context, inv ActionInvocation) error

// ActionInvocation carries the decoded arguments of a system action.
type ActionInvocation struct {
	Name   string          `json:"name"`
	Domain string          `json:"domain"`
	UserID string          `json:"user_id,omitempty"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// ActionRegistry maps action names to handlers. Registration is append-only;
// a name can never be rebound once registered.
type ActionRegistry struct {
	svc *Service

	mu       sync.RWMutex
	handlers map[string]ActionHandler
}

func newActionRegistry(svc *Service) *ActionRegistry {
	return &ActionRegistry{svc: svc, handlers: make(map[string]ActionHandler)}
}

// Register binds a handler to an action name. Registering the same name
// twice returns DuplicateActionError.
func (r *ActionRegistry) Register(name string, handler ActionHandler) error {
	if name == "" {
		return fmt.Errorf("system action name required")
	}
	if handler == nil {
		return fmt.Errorf("system action %q: handler required", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		return domain.DuplicateActionError{Name: name}
	}
	r.handlers[name] = handler
	return nil
}

// Registered reports whether a handler is bound to the given name.
func (r *ActionRegistry) Registered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[name]
	return ok
}

func (r *ActionRegistry) handler(name string) (ActionHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[name]
	if !ok {
		return nil, domain.UnknownSystemActionError{Name: name}
	}
	return handler, nil
}

// Submit records the invocation as a system action form, then executes its
// handler inside the system execution context. The recorded form is durable
// before the handler runs, so an interrupted action can be replayed.
func (r *ActionRegistry) Submit(ctx context.Context, inv ActionInvocation) (domain.XFormInstance, error) {
	handler, err := r.handler(inv.Name)
	if err != nil {
		return domain.XFormInstance{}, err
	}
	payload, err := domain.NewFormPayloadFromValue(inv)
	if err != nil {
		return domain.XFormInstance{}, fmt.Errorf("encode action %q: %w", inv.Name, err)
	}
	// Action forms are recorded already archived so they never surface in
	// normal-state enumeration or exports.
	form := domain.XFormInstance{
		FormID:  uuid.NewString(),
		Domain:  inv.Domain,
		UserID:  inv.UserID,
		XMLNS:   domain.SystemActionXMLNS,
		State:   domain.StateArchived,
		Payload: payload,
	}
	err = r.svc.backend.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var saveErr error
		form, saveErr = tx.SaveForm(form)
		return saveErr
	})
	if err != nil {
		return domain.XFormInstance{}, fmt.Errorf("record action %q: %w", inv.Name, err)
	}
	r.svc.logger.Info("system action submitted", "action", inv.Name, "domain", inv.Domain, "form_id", form.FormID)
	if err := handler(WithSystemContext(ctx), inv); err != nil {
		return form, err
	}
	return form, nil
}

// Replay re-executes the system action recorded by the given form.
func (r *ActionRegistry) Replay(ctx context.Context, formID string) error {
	form, err := r.svc.backend.GetForm(formID)
	if err != nil {
		return err
	}
	return r.HandleSystemActionForm(WithSystemContext(ctx), form)
}

// HandleSystemActionForm dispatches a recorded system action form to its
// handler. The context must carry the system execution marker; handling an
// action form from an ordinary submission path is rejected.
func (r *ActionRegistry) HandleSystemActionForm(ctx context.Context, form domain.XFormInstance) error {
	if !form.IsSystemAction() {
		return fmt.Errorf("form %s is not a system action form", form.FormID)
	}
	if !IsSystemContext(ctx) {
		return domain.UnauthorizedSystemActionError{FormID: form.FormID}
	}
	var inv ActionInvocation
	if err := json.Unmarshal(form.Payload.Raw(), &inv); err != nil {
		return fmt.Errorf("decode action form %s: %w", form.FormID, err)
	}
	handler, err := r.handler(inv.Name)
	if err != nil {
		return err
	}
	r.svc.logger.Info("system action replayed", "action", inv.Name, "form_id", form.FormID)
	return handler(ctx, inv)
}

type systemContextKey struct{}

// WithSystemContext marks the context as the privileged system execution
// scope in which system action forms may be handled.
func WithSystemContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, systemContextKey{}, true)
}

// IsSystemContext reports whether the context carries the system marker.
func IsSystemContext(ctx context.Context) bool {
	v, _ := ctx.Value(systemContextKey{}).(bool)
	return v
}

// archiveActionArgs is the argument encoding of ArchiveFormAction.
type archiveActionArgs struct {
	FormID         string `json:"form_id"`
	Archive        bool   `json:"archive"`
	TriggerSignals bool   `json:"trigger_signals"`
}

func (s *Service) registerBuiltinActions() {
	// registry is empty at construction; Register cannot fail here
	_ = s.actions.Register(ArchiveFormAction, func(ctx context.Context, inv ActionInvocation) error {
		var args archiveActionArgs
		if err := json.Unmarshal(inv.Args, &args); err != nil {
			return fmt.Errorf("decode %s args: %w", ArchiveFormAction, err)
		}
		return s.performArchive(ctx, inv.Domain, args.FormID, args.Archive, inv.UserID, args.TriggerSignals)
	})
}
