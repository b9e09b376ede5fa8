package tasks

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
)

// Service enforces the domain contracts in front of a Store: validation
// happens before any mutation, and assignee handles resolve with a
// soft-fail policy (an unresolved handle means unassigned, never an error,
// so a typo in a chat command cannot sink the whole operation).
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) Store() Store {
	return s.store
}

// NormalizeHandle strips one leading "@" and surrounding whitespace.
func NormalizeHandle(handle string) string {
	handle = strings.TrimSpace(handle)
	handle = strings.TrimPrefix(handle, "@")
	return strings.TrimSpace(handle)
}

func (s *Service) ResolveHandle(ctx context.Context, handle string) (Person, bool, error) {
	handle = NormalizeHandle(handle)
	if handle == "" {
		return Person{}, false, nil
	}
	return s.store.ResolveHandle(ctx, handle)
}

func (s *Service) CreateTask(ctx context.Context, req CreateTaskRequest) (int64, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return 0, ErrTitleRequired
	}
	for _, ref := range req.Refs {
		if strings.TrimSpace(ref.URL) == "" {
			return 0, ErrURLRequired
		}
	}
	for _, reqID := range req.PrereqIDs {
		if reqID == 0 {
			return 0, ErrPrereqRequired
		}
	}

	task := Task{
		Title:        title,
		Due:          req.Due,
		Status:       StatusTodo,
		Description:  req.Description,
		Instructions: req.Instructions,
	}
	if handle := NormalizeHandle(req.AssigneeHandle); handle != "" {
		person, ok, err := s.store.ResolveHandle(ctx, handle)
		if err != nil {
			return 0, err
		}
		if ok {
			task.AssigneeID = &person.ID
		} else {
			log.Debug().Str("handle", handle).Msg("assignee handle did not resolve, leaving task unassigned")
		}
	}
	return s.store.CreateTask(ctx, task, req.Refs, req.PrereqIDs)
}

// UpdateTask applies a partial update. Presence of the assignee field
// always overwrites the assignee: when the handle is empty, null, or does
// not resolve, the task ends up unassigned.
func (s *Service) UpdateTask(ctx context.Context, id int64, req UpdateTaskRequest) error {
	patch := TaskPatch{
		Description:  req.Description,
		Instructions: req.Instructions,
		Due:          req.Due,
		DueSet:       req.DueSet,
	}
	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return ErrTitleRequired
		}
		patch.Title = &title
	}
	if req.Status != nil {
		status := Status(strings.TrimSpace(*req.Status))
		if !status.Valid() {
			return ErrInvalidStatus
		}
		patch.Status = &status
	}
	if req.AssigneeSet {
		patch.AssigneeSet = true
		if req.AssigneeHandle != nil {
			if handle := NormalizeHandle(*req.AssigneeHandle); handle != "" {
				person, ok, err := s.store.ResolveHandle(ctx, handle)
				if err != nil {
					return err
				}
				if ok {
					patch.AssigneeID = &person.ID
				} else {
					log.Debug().Str("handle", handle).Msg("assignee handle did not resolve, clearing assignee")
				}
			}
		}
	}
	return s.store.UpdateTask(ctx, id, patch)
}

func (s *Service) GetTask(ctx context.Context, id int64) (TaskView, error) {
	return s.store.GetTask(ctx, id)
}

func (s *Service) ListTasks(ctx context.Context, filter ListFilter) ([]TaskSummary, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	filter.AssigneeHandle = NormalizeHandle(filter.AssigneeHandle)
	return s.store.ListTasks(ctx, filter)
}

func (s *Service) AddReference(ctx context.Context, taskID int64, url, caption string) error {
	if strings.TrimSpace(url) == "" {
		return ErrURLRequired
	}
	return s.store.AddReference(ctx, taskID, url, caption)
}

func (s *Service) AddPrerequisite(ctx context.Context, taskID, requiresID int64) error {
	if requiresID == 0 {
		return ErrPrereqRequired
	}
	if taskID == requiresID {
		return ErrSelfDependency
	}
	return s.store.AddPrerequisite(ctx, taskID, requiresID)
}

// CreateContentItem records a content item; an empty title falls back to
// "Untitled" so a bare /newcontent command still succeeds.
func (s *Service) CreateContentItem(ctx context.Context, title string) (int64, string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Untitled"
	}
	id, err := s.store.CreateContentItem(ctx, title)
	return id, title, err
}
