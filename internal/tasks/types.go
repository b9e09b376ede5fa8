package tasks

import "time"

type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusBlocked    Status = "blocked"
)

func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusDone, StatusBlocked:
		return true
	default:
		return false
	}
}

// Person is a directory entry; people are provisioned outside this service
// and referenced by tasks as assignees.
type Person struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Role       string    `json:"role,omitempty"`
	TelegramID int64     `json:"telegram_id,omitempty"`
	Handle     string    `json:"username"`
	CreatedAt  time.Time `json:"created_at"`
}

type Task struct {
	ID           int64
	Title        string
	ContentID    *int64
	AssigneeID   *int64
	Due          *time.Time
	Status       Status
	Description  string
	Instructions string
	CreatedAt    time.Time
}

// Reference is a URL attached to a task. Immutable once created; removed
// only when the owning task is removed.
type Reference struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	Caption   string    `json:"caption,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Prereq identifies a task that must complete before the dependent task
// is considered ready.
type Prereq struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// ContentItem is a loosely related grouping entity a task may point at.
type ContentItem struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskView is the full read model for a single task.
type TaskView struct {
	ID             int64       `json:"id"`
	Title          string      `json:"title"`
	Due            string      `json:"due,omitempty"`
	Status         Status      `json:"status"`
	AssigneeHandle string      `json:"assignee_username"`
	Description    string      `json:"description,omitempty"`
	Instructions   string      `json:"instructions,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	Refs           []Reference `json:"refs"`
	Prereqs        []Prereq    `json:"prereqs"`
}

// TaskSummary is the abbreviated read model used by listings.
type TaskSummary struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	Due            string `json:"due,omitempty"`
	Status         Status `json:"status"`
	AssigneeHandle string `json:"assignee_username"`
}

// ListFilter narrows task listings; zero values mean "no filter" and the
// filters combine with logical AND.
type ListFilter struct {
	Status         Status
	Due            *time.Time
	AssigneeHandle string
}

type RefInput struct {
	URL     string `json:"url"`
	Caption string `json:"caption"`
}

type CreateTaskRequest struct {
	Title          string
	Due            *time.Time
	AssigneeHandle string
	Description    string
	Instructions   string
	Refs           []RefInput
	PrereqIDs      []int64
}

// UpdateTaskRequest carries a partial update. Pointer fields left nil are
// untouched; the Set flags record that a field was present in the request
// even when its value was null, which matters for clearing the assignee
// and the due date.
type UpdateTaskRequest struct {
	Title          *string
	Status         *string
	Description    *string
	Instructions   *string
	Due            *time.Time
	DueSet         bool
	AssigneeHandle *string
	AssigneeSet    bool
}

// TaskPatch is the storage-level form of a partial update, after handle
// resolution has produced an assignee id (or nil for unassigned).
type TaskPatch struct {
	Title        *string
	Status       *Status
	Description  *string
	Instructions *string
	Due          *time.Time
	DueSet       bool
	AssigneeID   *int64
	AssigneeSet  bool
}

func (p TaskPatch) Empty() bool {
	return p.Title == nil && p.Status == nil && p.Description == nil &&
		p.Instructions == nil && !p.DueSet && !p.AssigneeSet
}

// DigestEntry is one row of the daily digest: a task due today with its
// assignee label already resolved ("Unassigned" when nobody owns it).
type DigestEntry struct {
	ID       int64
	Title    string
	Due      time.Time
	Assignee string
}

const dueFormat = "2006-01-02"

func formatDue(due *time.Time) string {
	if due == nil {
		return ""
	}
	return due.Format(dueFormat)
}
