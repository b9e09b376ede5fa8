package tasks

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps the whole tracker in process memory. It mirrors the
// postgres store's semantics (cascades excepted, since nothing deletes)
// and backs tests and database-less local runs.
type MemoryStore struct {
	mu          sync.Mutex
	nextPerson  int64
	nextTask    int64
	nextRef     int64
	nextContent int64
	people      map[int64]Person
	tasks       map[int64]Task
	refs        map[int64][]Reference
	deps        map[int64]map[int64]struct{}
	contents    map[int64]ContentItem
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		people:   make(map[int64]Person),
		tasks:    make(map[int64]Task),
		refs:     make(map[int64][]Reference),
		deps:     make(map[int64]map[int64]struct{}),
		contents: make(map[int64]ContentItem),
	}
}

// AddPerson provisions a directory entry. People are created outside the
// core API, so this lives on the concrete store only.
func (s *MemoryStore) AddPerson(p Person) Person {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPerson++
	p.ID = s.nextPerson
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	s.people[p.ID] = p
	return p
}

func (s *MemoryStore) ResolveHandle(_ context.Context, handle string) (Person, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.people {
		if p.Handle == handle {
			return p, true, nil
		}
	}
	return Person{}, false, nil
}

func (s *MemoryStore) CreateTask(_ context.Context, task Task, refs []RefInput, prereqIDs []int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate edges up front so the insert stays all-or-nothing, like the
	// transactional postgres path.
	for _, reqID := range prereqIDs {
		if _, ok := s.tasks[reqID]; !ok {
			return 0, ErrTaskNotFound
		}
	}

	s.nextTask++
	task.ID = s.nextTask
	if task.Status == "" {
		task.Status = StatusTodo
	}
	task.CreatedAt = time.Now()
	s.tasks[task.ID] = task

	for _, ref := range refs {
		s.nextRef++
		s.refs[task.ID] = append(s.refs[task.ID], Reference{
			ID:        s.nextRef,
			URL:       ref.URL,
			Caption:   ref.Caption,
			CreatedAt: time.Now(),
		})
	}
	for _, reqID := range prereqIDs {
		s.addDepLocked(task.ID, reqID)
	}
	return task.ID, nil
}

func (s *MemoryStore) addDepLocked(taskID, requiresID int64) {
	set, ok := s.deps[taskID]
	if !ok {
		set = make(map[int64]struct{})
		s.deps[taskID] = set
	}
	set[requiresID] = struct{}{}
}

func (s *MemoryStore) UpdateTask(_ context.Context, id int64, patch TaskPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Status != nil {
		task.Status = *patch.Status
	}
	if patch.Description != nil {
		task.Description = *patch.Description
	}
	if patch.Instructions != nil {
		task.Instructions = *patch.Instructions
	}
	if patch.DueSet {
		task.Due = patch.Due
	}
	if patch.AssigneeSet {
		task.AssigneeID = patch.AssigneeID
	}
	s.tasks[id] = task
	return nil
}

func (s *MemoryStore) GetTask(_ context.Context, id int64) (TaskView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return TaskView{}, ErrTaskNotFound
	}

	view := TaskView{
		ID:             task.ID,
		Title:          task.Title,
		Due:            formatDue(task.Due),
		Status:         task.Status,
		AssigneeHandle: s.handleOfLocked(task.AssigneeID),
		Description:    task.Description,
		Instructions:   task.Instructions,
		CreatedAt:      task.CreatedAt,
		Refs:           make([]Reference, 0, len(s.refs[id])),
		Prereqs:        make([]Prereq, 0, len(s.deps[id])),
	}
	view.Refs = append(view.Refs, s.refs[id]...)

	reqIDs := make([]int64, 0, len(s.deps[id]))
	for reqID := range s.deps[id] {
		reqIDs = append(reqIDs, reqID)
	}
	sort.Slice(reqIDs, func(i, j int) bool { return reqIDs[i] < reqIDs[j] })
	for _, reqID := range reqIDs {
		view.Prereqs = append(view.Prereqs, Prereq{ID: reqID, Title: s.tasks[reqID].Title})
	}
	return view, nil
}

func (s *MemoryStore) handleOfLocked(assigneeID *int64) string {
	if assigneeID == nil {
		return ""
	}
	return s.people[*assigneeID].Handle
}

func (s *MemoryStore) ListTasks(_ context.Context, filter ListFilter) ([]TaskSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type row struct {
		sum TaskSummary
		due *time.Time
	}
	rows := make([]row, 0, len(s.tasks))
	for _, task := range s.tasks {
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.Due != nil && (task.Due == nil || !sameDate(*task.Due, *filter.Due)) {
			continue
		}
		handle := s.handleOfLocked(task.AssigneeID)
		if filter.AssigneeHandle != "" && handle != filter.AssigneeHandle {
			continue
		}
		rows = append(rows, row{
			sum: TaskSummary{
				ID:             task.ID,
				Title:          task.Title,
				Due:            formatDue(task.Due),
				Status:         task.Status,
				AssigneeHandle: handle,
			},
			due: task.Due,
		})
	}

	// Due ascending with nulls last, id descending as tie-break.
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch {
		case a.due == nil && b.due == nil:
			return a.sum.ID > b.sum.ID
		case a.due == nil:
			return false
		case b.due == nil:
			return true
		case !a.due.Equal(*b.due):
			return a.due.Before(*b.due)
		default:
			return a.sum.ID > b.sum.ID
		}
	})

	out := make([]TaskSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.sum)
	}
	return out, nil
}

func (s *MemoryStore) AddReference(_ context.Context, taskID int64, url, caption string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[taskID]; !ok {
		return ErrTaskNotFound
	}
	s.nextRef++
	s.refs[taskID] = append(s.refs[taskID], Reference{
		ID:        s.nextRef,
		URL:       url,
		Caption:   caption,
		CreatedAt: time.Now(),
	})
	return nil
}

func (s *MemoryStore) AddPrerequisite(_ context.Context, taskID, requiresID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if taskID == requiresID {
		return ErrSelfDependency
	}
	if _, ok := s.tasks[taskID]; !ok {
		return ErrTaskNotFound
	}
	if _, ok := s.tasks[requiresID]; !ok {
		return ErrTaskNotFound
	}
	s.addDepLocked(taskID, requiresID)
	return nil
}

func (s *MemoryStore) ListDueToday(_ context.Context, today time.Time) ([]DigestEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]DigestEntry, 0, 8)
	for _, task := range s.tasks {
		if task.Status != StatusTodo && task.Status != StatusInProgress {
			continue
		}
		if task.Due == nil || !sameDate(*task.Due, today) {
			continue
		}
		label := "Unassigned"
		if task.AssigneeID != nil {
			if p, ok := s.people[*task.AssigneeID]; ok {
				label = p.Name
			}
		}
		out = append(out, DigestEntry{
			ID:       task.ID,
			Title:    task.Title,
			Due:      *task.Due,
			Assignee: label,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Assignee != out[j].Assignee {
			return out[i].Assignee < out[j].Assignee
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) CreateContentItem(_ context.Context, title string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextContent++
	s.contents[s.nextContent] = ContentItem{
		ID:        s.nextContent,
		Title:     title,
		CreatedAt: time.Now(),
	}
	return s.nextContent, nil
}

// ContentItems returns all recorded content items ordered by id; used by
// tests to observe webhook effects.
func (s *MemoryStore) ContentItems() []ContentItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ContentItem, 0, len(s.contents))
	for _, item := range s.contents {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryStore) Close() error {
	return nil
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
