// Package feed publishes change feed events for saved forms and cases.
// Downstream pillows (reindexers, rule engines) subscribe to these
// subjects; publishing is best effort and never blocks a commit.
package feed

import "time"

// Subjects for the change feed.
const (
	SubjectFormsSaved = "casecore.forms.saved"
	SubjectCasesSaved = "casecore.cases.saved"
)

// FormEvent describes a saved or state-changed form.
type FormEvent struct {
	FormID      string    `json:"form_id"`
	Domain      string    `json:"domain"`
	State       string    `json:"state"`
	Archived    bool      `json:"archived"`
	PublishedOn time.Time `json:"published_on"`
}

// CaseEvent describes a saved or touched case.
type CaseEvent struct {
	CaseID      string    `json:"case_id"`
	Domain      string    `json:"domain"`
	Closed      bool      `json:"closed"`
	PublishedOn time.Time `json:"published_on"`
}

// Publisher emits change feed events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	PublishFormSaved(event FormEvent) error
	PublishCaseSaved(event CaseEvent) error
}

// NopPublisher discards all events.
type NopPublisher struct{}

func (NopPublisher) PublishFormSaved(FormEvent) error { return nil }
func (NopPublisher) PublishCaseSaved(CaseEvent) error { return nil }
