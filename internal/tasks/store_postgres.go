package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, strings.TrimSpace(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

// initSchema provisions the five relations. Every statement is idempotent
// so this runs on every startup.
func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS people (
			id serial PRIMARY KEY,
			name text NOT NULL,
			role text,
			telegram_id bigint,
			username text UNIQUE,
			created_at timestamptz DEFAULT NOW()
		)`,
		`DO $$
		BEGIN
			IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname='task_status') THEN
				CREATE TYPE task_status AS ENUM ('todo','in_progress','done','blocked');
			END IF;
		END$$`,
		`CREATE TABLE IF NOT EXISTS content_items (
			id serial PRIMARY KEY,
			title text NOT NULL,
			created_at timestamptz DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id serial PRIMARY KEY,
			title text NOT NULL,
			content_id int REFERENCES content_items(id) ON DELETE SET NULL,
			assignee_id int REFERENCES people(id) ON DELETE SET NULL,
			due date,
			status task_status DEFAULT 'todo',
			description text,
			instructions text,
			created_at timestamptz DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(due)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
		`CREATE TABLE IF NOT EXISTS task_refs (
			id serial PRIMARY KEY,
			task_id int NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			url text NOT NULL,
			caption text,
			created_at timestamptz DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS task_deps (
			task_id int NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			requires_task_id int NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			created_at timestamptz DEFAULT NOW(),
			PRIMARY KEY(task_id, requires_task_id),
			CHECK (task_id <> requires_task_id)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) ResolveHandle(ctx context.Context, handle string) (Person, bool, error) {
	var p Person
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, COALESCE(role,''), COALESCE(telegram_id,0), COALESCE(username,''), created_at
		   FROM people WHERE username=$1`,
		handle,
	).Scan(&p.ID, &p.Name, &p.Role, &p.TelegramID, &p.Handle, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Person{}, false, nil
		}
		return Person{}, false, fmt.Errorf("resolve handle: %w", err)
	}
	return p, true, nil
}

func (s *PostgresStore) CreateTask(ctx context.Context, task Task, refs []RefInput, prereqIDs []int64) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO tasks (title, content_id, assignee_id, due, status, description, instructions)
		 VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id`,
		task.Title,
		task.ContentID,
		task.AssigneeID,
		task.Due,
		string(task.Status),
		task.Description,
		task.Instructions,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}

	for _, ref := range refs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO task_refs (task_id, url, caption) VALUES ($1,$2,$3)`,
			id, ref.URL, ref.Caption,
		); err != nil {
			return 0, fmt.Errorf("insert task ref: %w", err)
		}
	}

	for _, reqID := range prereqIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO task_deps (task_id, requires_task_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`,
			id, reqID,
		); err != nil {
			if mapped := mapConstraintError(err); mapped != nil {
				return 0, mapped
			}
			return 0, fmt.Errorf("insert task dep: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) UpdateTask(ctx context.Context, id int64, patch TaskPatch) error {
	if patch.Empty() {
		// Still observable as a no-match condition for unknown ids.
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM tasks WHERE id=$1)`, id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("probe task: %w", err)
		}
		if !exists {
			return ErrTaskNotFound
		}
		return nil
	}

	sets := make([]string, 0, 6)
	args := make([]any, 0, 7)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.Description != nil {
		add("description", *patch.Description)
	}
	if patch.Instructions != nil {
		add("instructions", *patch.Instructions)
	}
	if patch.DueSet {
		add("due", patch.Due)
	}
	if patch.AssigneeSet {
		add("assignee_id", patch.AssigneeID)
	}

	args = append(args, id)
	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE tasks SET %s WHERE id=$%d`, strings.Join(sets, ", "), len(args)),
		args...,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (s *PostgresStore) GetTask(ctx context.Context, id int64) (TaskView, error) {
	var (
		view TaskView
		due  *time.Time
	)
	err := s.pool.QueryRow(ctx,
		`SELECT t.id, t.title, t.due, t.status, COALESCE(p.username,''),
		        COALESCE(t.description,''), COALESCE(t.instructions,''), t.created_at
		   FROM tasks t
		   LEFT JOIN people p ON p.id = t.assignee_id
		  WHERE t.id=$1`,
		id,
	).Scan(&view.ID, &view.Title, &due, &view.Status, &view.AssigneeHandle,
		&view.Description, &view.Instructions, &view.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TaskView{}, ErrTaskNotFound
		}
		return TaskView{}, fmt.Errorf("get task: %w", err)
	}
	view.Due = formatDue(due)

	view.Refs, err = s.loadRefs(ctx, id)
	if err != nil {
		return TaskView{}, err
	}
	view.Prereqs, err = s.loadPrereqs(ctx, id)
	if err != nil {
		return TaskView{}, err
	}
	return view, nil
}

func (s *PostgresStore) loadRefs(ctx context.Context, taskID int64) ([]Reference, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, url, COALESCE(caption,''), created_at
		   FROM task_refs WHERE task_id=$1 ORDER BY id ASC`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("list task refs: %w", err)
	}
	defer rows.Close()

	refs := make([]Reference, 0, 4)
	for rows.Next() {
		var ref Reference
		if err := rows.Scan(&ref.ID, &ref.URL, &ref.Caption, &ref.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task ref: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task refs: %w", err)
	}
	return refs, nil
}

func (s *PostgresStore) loadPrereqs(ctx context.Context, taskID int64) ([]Prereq, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT d.requires_task_id, t.title
		   FROM task_deps d
		   JOIN tasks t ON t.id = d.requires_task_id
		  WHERE d.task_id=$1 ORDER BY d.requires_task_id ASC`,
		taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("list task deps: %w", err)
	}
	defer rows.Close()

	prereqs := make([]Prereq, 0, 4)
	for rows.Next() {
		var p Prereq
		if err := rows.Scan(&p.ID, &p.Title); err != nil {
			return nil, fmt.Errorf("scan task dep: %w", err)
		}
		prereqs = append(prereqs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task deps: %w", err)
	}
	return prereqs, nil
}

func (s *PostgresStore) ListTasks(ctx context.Context, filter ListFilter) ([]TaskSummary, error) {
	conds := make([]string, 0, 3)
	args := make([]any, 0, 3)
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("t.status=$%d", len(args)))
	}
	if filter.Due != nil {
		args = append(args, *filter.Due)
		conds = append(conds, fmt.Sprintf("t.due=$%d", len(args)))
	}
	if filter.AssigneeHandle != "" {
		args = append(args, filter.AssigneeHandle)
		conds = append(conds, fmt.Sprintf("p.username=$%d", len(args)))
	}

	q := `SELECT t.id, t.title, t.due, t.status, COALESCE(p.username,'')
	        FROM tasks t
	        LEFT JOIN people p ON p.id = t.assignee_id`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY t.due ASC NULLS LAST, t.id DESC"

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	out := make([]TaskSummary, 0, 16)
	for rows.Next() {
		var (
			sum TaskSummary
			due *time.Time
		)
		if err := rows.Scan(&sum.ID, &sum.Title, &due, &sum.Status, &sum.AssigneeHandle); err != nil {
			return nil, fmt.Errorf("scan task summary: %w", err)
		}
		sum.Due = formatDue(due)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate task summaries: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) AddReference(ctx context.Context, taskID int64, url, caption string) error {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO task_refs (task_id, url, caption) VALUES ($1,$2,$3)`,
		taskID, url, caption,
	); err != nil {
		if mapped := mapConstraintError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert task ref: %w", err)
	}
	return nil
}

func (s *PostgresStore) AddPrerequisite(ctx context.Context, taskID, requiresID int64) error {
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO task_deps (task_id, requires_task_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`,
		taskID, requiresID,
	); err != nil {
		if mapped := mapConstraintError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert task dep: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListDueToday(ctx context.Context, today time.Time) ([]DigestEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT t.id, t.title, t.due, COALESCE(p.name,'Unassigned') AS assignee
		   FROM tasks t
		   LEFT JOIN people p ON p.id = t.assignee_id
		  WHERE t.status IN ('todo','in_progress') AND t.due = $1
		  ORDER BY assignee, t.id`,
		today,
	)
	if err != nil {
		return nil, fmt.Errorf("list due today: %w", err)
	}
	defer rows.Close()

	out := make([]DigestEntry, 0, 8)
	for rows.Next() {
		var e DigestEntry
		if err := rows.Scan(&e.ID, &e.Title, &e.Due, &e.Assignee); err != nil {
			return nil, fmt.Errorf("scan digest entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate digest entries: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CreateContentItem(ctx context.Context, title string) (int64, error) {
	var id int64
	if err := s.pool.QueryRow(ctx,
		`INSERT INTO content_items (title) VALUES ($1) RETURNING id`, title,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert content item: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// mapConstraintError translates the constraint violations the schema can
// produce into domain errors; anything else is left to the caller to wrap.
func mapConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}
	switch pgErr.Code {
	case "23503": // foreign_key_violation: an endpoint task does not exist
		return ErrTaskNotFound
	case "23514": // check_violation: task_id <> requires_task_id
		return ErrSelfDependency
	default:
		return nil
	}
}
