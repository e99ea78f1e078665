package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/creditors/internal/fault"
	"github.com/roach88/creditors/internal/records"
)

// taskKey is the deduplication key of a task: scheduling the same work
// twice yields one task.
func taskKey(t records.Task) string {
	switch t.Type {
	case records.TaskDeleteTransfer:
		return t.TransferURI
	case records.TaskFetchDebtorInfo:
		return t.IRI + " " + t.AccountURI
	}
	return ""
}

// PutTask schedules a task unless the same work is already scheduled.
//
// Returns the stored task and whether it was inserted.
func (t *Tx) PutTask(ctx context.Context, task records.Task) (records.Task, bool, error) {
	key := taskKey(task)
	if key == "" {
		return records.Task{}, false, fmt.Errorf("put task: unknown or incomplete %s task", task.Type)
	}
	data, err := json.Marshal(task)
	if err != nil {
		return records.Task{}, false, fmt.Errorf("put task: %w", err)
	}

	result, err := t.q.ExecContext(ctx, `
		INSERT INTO tasks (user_id, task_type, dedup_key, scheduled_for, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, task_type, dedup_key) DO NOTHING
	`, task.UserID, string(task.Type), key, toMillis(task.ScheduledFor), string(data))
	if err != nil {
		return records.Task{}, false, fmt.Errorf("put task: insert: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return records.Task{}, false, fmt.Errorf("put task: rows affected: %w", err)
	}

	var taskID int64
	if err := t.q.QueryRowContext(ctx, `
		SELECT task_id FROM tasks WHERE user_id = ? AND task_type = ? AND dedup_key = ?
	`, task.UserID, string(task.Type), key).Scan(&taskID); err != nil {
		return records.Task{}, false, fmt.Errorf("put task: select existing: %w", err)
	}
	stored, err := t.getTask(ctx, taskID)
	if err != nil {
		return records.Task{}, false, err
	}
	if rowsAffected > 0 {
		t.record(Change{Kind: ChangeTask, UserID: task.UserID, ID: taskID})
	}
	return stored, rowsAffected > 0, nil
}

func (t *Tx) getTask(ctx context.Context, taskID int64) (records.Task, error) {
	row := t.q.QueryRowContext(ctx,
		`SELECT task_id, scheduled_for, data FROM tasks WHERE task_id = ?`, taskID)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return records.Task{}, fault.New(fault.KindRecordDoesNotExist, "get task",
			fmt.Sprintf("task %d", taskID))
	}
	return task, err
}

// ListDueTasks returns up to limit of a user's tasks scheduled at or before the
// given time, earliest first.
func (t *Tx) ListDueTasks(ctx context.Context, userID int64, before time.Time, limit int) ([]records.Task, error) {
	return t.queryTasks(ctx, `
		SELECT task_id, scheduled_for, data FROM tasks
		WHERE user_id = ? AND scheduled_for <= ?
		ORDER BY scheduled_for ASC, task_id ASC
		LIMIT ?
	`, userID, toMillis(before), limit)
}

// ListTasks returns all of a user's tasks, earliest first.
func (t *Tx) ListTasks(ctx context.Context, userID int64) ([]records.Task, error) {
	return t.queryTasks(ctx, `
		SELECT task_id, scheduled_for, data FROM tasks
		WHERE user_id = ?
		ORDER BY scheduled_for ASC, task_id ASC
	`, userID)
}

func (t *Tx) queryTasks(ctx context.Context, query string, args ...any) ([]records.Task, error) {
	rows, err := t.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []records.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// DeleteTask removes a task. Deleting a missing task is not an error.
func (t *Tx) DeleteTask(ctx context.Context, task records.Task) error {
	result, err := t.q.ExecContext(ctx, `DELETE FROM tasks WHERE task_id = ?`, task.TaskID)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", task.TaskID, err)
	}
	if n, _ := result.RowsAffected(); n > 0 {
		t.record(Change{Kind: ChangeTask, UserID: task.UserID, ID: task.TaskID, Deleted: true})
	}
	return nil
}

// RescheduleTask moves a task to a later time and records another attempt.
func (t *Tx) RescheduleTask(ctx context.Context, task records.Task, at time.Time) (records.Task, error) {
	task.ScheduledFor = at
	task.Attempts++
	data, err := json.Marshal(task)
	if err != nil {
		return records.Task{}, fmt.Errorf("reschedule task: %w", err)
	}
	result, err := t.q.ExecContext(ctx, `
		UPDATE tasks SET scheduled_for = ?, data = ? WHERE task_id = ?
	`, toMillis(at), string(data), task.TaskID)
	if err != nil {
		return records.Task{}, fmt.Errorf("reschedule task %d: %w", task.TaskID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return records.Task{}, fault.New(fault.KindRecordDoesNotExist, "reschedule task",
			fmt.Sprintf("task %d", task.TaskID))
	}
	t.record(Change{Kind: ChangeTask, UserID: task.UserID, ID: task.TaskID})
	return task, nil
}

func scanTask(row scanner) (records.Task, error) {
	var (
		id           int64
		scheduledFor int64
		data         string
	)
	if err := row.Scan(&id, &scheduledFor, &data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return records.Task{}, err
		}
		return records.Task{}, fmt.Errorf("scan task: %w", err)
	}
	var task records.Task
	if err := json.Unmarshal([]byte(data), &task); err != nil {
		return records.Task{}, fmt.Errorf("unmarshal task: %w", err)
	}
	task.TaskID = id
	task.ScheduledFor = fromMillis(scheduledFor)
	return task, nil
}

// ListDueTasks returns up to limit of a user's tasks due at or before the given
// time.
func (s *Store) ListDueTasks(ctx context.Context, userID int64, before time.Time, limit int) ([]records.Task, error) {
	return s.reader().ListDueTasks(ctx, userID, before, limit)
}

// ListTasks returns all of a user's tasks.
func (s *Store) ListTasks(ctx context.Context, userID int64) ([]records.Task, error) {
	return s.reader().ListTasks(ctx, userID)
}

// PutTask schedules a task in its own transaction.
func (s *Store) PutTask(ctx context.Context, task records.Task) (stored records.Task, inserted bool, err error) {
	err = s.WithTx(ctx, func(tx *Tx) error {
		stored, inserted, err = tx.PutTask(ctx, task)
		return err
	})
	return stored, inserted, err
}

// DeleteTask removes a task in its own transaction.
func (s *Store) DeleteTask(ctx context.Context, task records.Task) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		return tx.DeleteTask(ctx, task)
	})
}

// RescheduleTask moves a task to a later time in its own transaction.
func (s *Store) RescheduleTask(ctx context.Context, task records.Task, at time.Time) (updated records.Task, err error) {
	err = s.WithTx(ctx, func(tx *Tx) error {
		updated, err = tx.RescheduleTask(ctx, task, at)
		return err
	})
	return updated, err
}
