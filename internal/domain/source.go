package domain

import (
	"time"

	"github.com/google/uuid"
)

// SourceStatus represents the verification state of a source.
type SourceStatus string

// Possible source status values
const (
	SourceStatusPending   SourceStatus = "pending"
	SourceStatusChecked   SourceStatus = "checked"
	SourceStatusDiscarded SourceStatus = "discarded"
	SourceStatusFailed    SourceStatus = "failed"
)

// Memento is a candidate archived snapshot of a source's original URL.
// Ordering within a source is archive-provider-defined, typically
// closest-in-time-first.
type Memento struct {
	URI       string    `json:"uri"`
	Timestamp time.Time `json:"timestamp"`
	Checked   bool      `json:"checked"`
}

// Source is one citation template instance within a task, tracked
// through verification and write-back. TemplateWikitext holds the
// verbatim fragment as extracted from the page; write-back replaces
// exactly this substring, so it must not be normalized.
type Source struct {
	ID               uuid.UUID    `json:"id"`
	TaskID           uuid.UUID    `json:"task_id"`
	TemplateName     string       `json:"template_name"`
	TemplateWikitext string       `json:"template_wikitext"`
	URL              string       `json:"url"`
	ArchiveURL       string       `json:"archive_url,omitempty"`
	ArchiveDate      time.Time    `json:"archive_date,omitempty"`
	Dead             bool         `json:"dead"`
	Status           SourceStatus `json:"status"`
	Position         int          `json:"position"`
	Mementos         []Memento    `json:"mementos,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at"`
}

// NewSource creates a new pending Source owned by the given task.
// Position is the citation order within the page content.
// Returns an error if validation fails.
func NewSource(
	taskID uuid.UUID,
	templateName, templateWikitext, url string,
	dead bool,
	position int,
) (*Source, error) {
	now := time.Now().UTC()
	source := &Source{
		ID:               uuid.New(),
		TaskID:           taskID,
		TemplateName:     templateName,
		TemplateWikitext: templateWikitext,
		URL:              url,
		Dead:             dead,
		Status:           SourceStatusPending,
		Position:         position,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := source.Validate(); err != nil {
		return nil, err
	}

	return source, nil
}

// Validate checks if the Source has valid data.
// Returns an error if any field fails validation.
func (s *Source) Validate() error {
	if s.ID == uuid.Nil {
		return ErrEmptySourceID
	}

	if s.TaskID == uuid.Nil {
		return ErrEmptySourceTaskID
	}

	if s.TemplateName == "" {
		return ErrEmptyTemplateName
	}

	if s.TemplateWikitext == "" {
		return ErrEmptyTemplateWikitext
	}

	if !isValidSourceStatus(s.Status) {
		return ErrInvalidSourceStatus
	}

	return nil
}

// IsTerminal reports whether the source has reached a status from which
// no further transition occurs.
func (s *Source) IsTerminal() bool {
	switch s.Status {
	case SourceStatusChecked, SourceStatusDiscarded, SourceStatusFailed:
		return true
	default:
		return false
	}
}

// MarkChecked records a verified memento match: the source becomes
// checked and its archive URL/date are taken from the memento. At most
// one memento per source carries Checked=true.
// Returns ErrSourceTerminal if the source is already terminal.
func (s *Source) MarkChecked(memento Memento) error {
	if s.IsTerminal() {
		return ErrSourceTerminal
	}

	for i := range s.Mementos {
		if s.Mementos[i].URI == memento.URI {
			s.Mementos[i].Checked = true
		}
	}

	s.Status = SourceStatusChecked
	s.ArchiveURL = memento.URI
	s.ArchiveDate = memento.Timestamp
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkFailed records that all mementos were exhausted without a match.
// Returns ErrSourceTerminal if the source is already terminal.
func (s *Source) MarkFailed() error {
	if s.IsTerminal() {
		return ErrSourceTerminal
	}

	s.Status = SourceStatusFailed
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkDiscarded declares the source out of scope for verification,
// e.g. when the citation template carries no original URL.
// Returns ErrSourceTerminal if the source is already terminal.
func (s *Source) MarkDiscarded() error {
	if s.IsTerminal() {
		return ErrSourceTerminal
	}

	s.Status = SourceStatusDiscarded
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// isValidSourceStatus checks if the given status is a valid SourceStatus.
func isValidSourceStatus(status SourceStatus) bool {
	switch status {
	case SourceStatusPending, SourceStatusChecked,
		SourceStatusDiscarded, SourceStatusFailed:
		return true
	default:
		return false
	}
}
