package models

import (
	"time"

	"github.com/lib/pq"
)

// TaskCategory classifies a party task
type TaskCategory string

const (
	TaskCategoryAppointment TaskCategory = "APPOINTMENT"
	TaskCategoryManual      TaskCategory = "MANUAL"
)

// TaskName identifies well-known system tasks
type TaskName string

const (
	// TaskNameCompleteContactInfo asks an agent to fill in missing contact details
	TaskNameCompleteContactInfo TaskName = "COMPLETE_CONTACT_INFO"
)

// TaskState is the lifecycle of a task
type TaskState string

const (
	TaskStateActive    TaskState = "ACTIVE"
	TaskStateCompleted TaskState = "COMPLETED"
	TaskStateCanceled  TaskState = "CANCELED"
)

// Task is a unit of work attached to a party. Appointment tasks carry the
// party members expected to attend.
type Task struct {
	ID             string         `json:"id" db:"id"`
	TenantID       string         `json:"tenant_id" db:"tenant_id"`
	PartyID        string         `json:"party_id" db:"party_id"`
	Name           TaskName       `json:"name" db:"name"`
	Category       TaskCategory   `json:"category" db:"category"`
	State          TaskState      `json:"state" db:"state"`
	PartyMemberIDs pq.StringArray `json:"party_member_ids" db:"party_member_ids"`
	PersonIDs      pq.StringArray `json:"person_ids" db:"person_ids"`
	DueAt          *time.Time     `json:"due_at,omitempty" db:"due_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}
