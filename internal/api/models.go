package api

import (
	"time"

	"github.com/wikicite/archiver/internal/domain"
)

// CreateTaskRequest represents the request body for creating a new task
type CreateTaskRequest struct {
	PageID int64 `json:"page_id" validate:"required,gt=0"`
}

// MementoResponse represents one archived snapshot candidate of a source
type MementoResponse struct {
	URI       string    `json:"uri"`
	Timestamp time.Time `json:"timestamp"`
	Checked   bool      `json:"checked"`
}

// SourceResponse represents the response data for a source
type SourceResponse struct {
	ID           string            `json:"id"`
	TemplateName string            `json:"template_name"`
	URL          string            `json:"url"`
	ArchiveURL   string            `json:"archive_url,omitempty"`
	ArchiveDate  *time.Time        `json:"archive_date,omitempty"`
	Dead         bool              `json:"dead"`
	Status       string            `json:"status"`
	Position     int               `json:"position"`
	Mementos     []MementoResponse `json:"mementos,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// TaskResponse represents the response data for a task
type TaskResponse struct {
	ID         string           `json:"id"`
	PageID     int64            `json:"page_id"`
	PageTitle  string           `json:"page_title"`
	RevisionID int64            `json:"revision_id"`
	Status     string           `json:"status"`
	Sources    []SourceResponse `json:"sources,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// TaskListResponse represents one page of a task listing
type TaskListResponse struct {
	Tasks         []TaskResponse `json:"tasks"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

// TaskEventMessage is one message on a task event stream
type TaskEventMessage struct {
	Type string       `json:"type"`
	Task TaskResponse `json:"task"`
}

// taskToDTOResponse converts a domain.Task to a TaskResponse
func taskToDTOResponse(task *domain.Task) TaskResponse {
	response := TaskResponse{
		ID:         task.ID.String(),
		PageID:     task.PageID,
		PageTitle:  task.PageTitle,
		RevisionID: task.RevisionID,
		Status:     string(task.Status),
		CreatedAt:  task.CreatedAt,
		UpdatedAt:  task.UpdatedAt,
	}
	for _, source := range task.Sources {
		response.Sources = append(response.Sources, sourceToDTOResponse(source))
	}
	return response
}

// sourceToDTOResponse converts a domain.Source to a SourceResponse
func sourceToDTOResponse(source *domain.Source) SourceResponse {
	response := SourceResponse{
		ID:           source.ID.String(),
		TemplateName: source.TemplateName,
		URL:          source.URL,
		ArchiveURL:   source.ArchiveURL,
		Dead:         source.Dead,
		Status:       string(source.Status),
		Position:     source.Position,
		CreatedAt:    source.CreatedAt,
		UpdatedAt:    source.UpdatedAt,
	}
	if !source.ArchiveDate.IsZero() {
		archiveDate := source.ArchiveDate
		response.ArchiveDate = &archiveDate
	}
	for _, memento := range source.Mementos {
		response.Mementos = append(response.Mementos, MementoResponse{
			URI:       memento.URI,
			Timestamp: memento.Timestamp,
			Checked:   memento.Checked,
		})
	}
	return response
}
