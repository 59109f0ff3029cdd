package feed

import "sync"

// MemoryPublisher records events in memory. Used in tests and by the CLI
// when no broker is configured.
type MemoryPublisher struct {
	mu    sync.Mutex
	forms []FormEvent
	cases []CaseEvent
}

func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

func (p *MemoryPublisher) PublishFormSaved(event FormEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.forms = append(p.forms, event)
	return nil
}

func (p *MemoryPublisher) PublishCaseSaved(event CaseEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cases = append(p.cases, event)
	return nil
}

// FormEvents returns a copy of the recorded form events.
func (p *MemoryPublisher) FormEvents() []FormEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]FormEvent, len(p.forms))
	copy(out, p.forms)
	return out
}

// CaseEvents returns a copy of the recorded case events.
func (p *MemoryPublisher) CaseEvents() []CaseEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]CaseEvent, len(p.cases))
	copy(out, p.cases)
	return out
}
