package tasks

import (
	"context"
	"time"
)

// Store is the persistence contract for the tracker. The postgres
// implementation backs production; the in-memory one backs tests and
// token-only local runs.
type Store interface {
	// ResolveHandle looks up a person by their exact handle. A miss is not
	// an error: callers decide what an unresolved handle means.
	ResolveHandle(ctx context.Context, handle string) (Person, bool, error)

	// CreateTask inserts the task together with its references and
	// prerequisite edges in one transaction and returns the new id.
	CreateTask(ctx context.Context, task Task, refs []RefInput, prereqIDs []int64) (int64, error)
	UpdateTask(ctx context.Context, id int64, patch TaskPatch) error
	GetTask(ctx context.Context, id int64) (TaskView, error)
	ListTasks(ctx context.Context, filter ListFilter) ([]TaskSummary, error)

	AddReference(ctx context.Context, taskID int64, url, caption string) error
	AddPrerequisite(ctx context.Context, taskID, requiresID int64) error

	// ListDueToday returns open tasks (todo or in_progress) due on the
	// given calendar date, ordered by assignee label then id.
	ListDueToday(ctx context.Context, today time.Time) ([]DigestEntry, error)

	CreateContentItem(ctx context.Context, title string) (int64, error)

	Close() error
}
