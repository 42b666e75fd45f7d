package domain

import "time"

type ProjectStatus string

const (
	ProjectPlanned   ProjectStatus = "planned"
	ProjectActive    ProjectStatus = "active"
	ProjectOnHold    ProjectStatus = "on_hold"
	ProjectCompleted ProjectStatus = "completed"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectPlanned, ProjectActive, ProjectOnHold, ProjectCompleted:
		return true
	}
	return false
}

// Project is a unit of delivery work owned by one branch.
type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	ClientID    string        `json:"client_id,omitempty"`
	Branch      Branch        `json:"branch"`
	Status      ProjectStatus `json:"status"`
	Description string        `json:"description,omitempty"`
	DueDate     *time.Time    `json:"due_date,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type ProjectPatch struct {
	Name        *string
	Status      *ProjectStatus
	Description *string
	DueDate     *time.Time
}

func (p ProjectPatch) Empty() bool {
	return p.Name == nil && p.Status == nil && p.Description == nil && p.DueDate == nil
}
