package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/julianstephens/evertodo/internal/models"
)

// SQLiteStore is the guest/local backend. All rows belong to the device
// owner; identifiers are generated UUIDs. Change events are dispatched
// in-process to subscribers registered on this store instance.
type SQLiteStore struct {
	path      string
	db        *sqlx.DB
	observers *observerSet
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{
		path:      path,
		observers: newObserverSet(),
	}
}

// Init opens (or creates) the database, enables WAL mode, and runs any
// pending schema migrations.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("opening sqlite db: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return fmt.Errorf("enabling foreign keys: %w", err)
	}

	s.db = db
	versionTableQuery := `
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name='schema_version'`
	if err := runMigrations(db, sqliteMigrations, versionTableQuery); err != nil {
		db.Close()
		s.db = nil
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// runMigrations checks the current schema version and applies outstanding
// migrations in order. Shared by both backends; versionTableQuery is the
// dialect-specific probe for the schema_version table.
func runMigrations(db *sqlx.DB, migrations []migration, versionTableQuery string) error {
	currentVersion := 0

	var tableCount int
	if err := db.Get(&tableCount, versionTableQuery); err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}
	if tableCount > 0 {
		if err := db.Get(&currentVersion,
			"SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}
	return nil
}

// CreateTodo inserts a new todo, generating a UUID if the ID is empty or
// optimistic (negative placeholder from the session cache).
func (s *SQLiteStore) CreateTodo(ctx context.Context, owner string, todo models.Todo) (models.Todo, error) {
	if todo.ID == "" || todo.IsOptimistic() {
		todo.ID = uuid.New().String()
	}
	now := time.Now()
	todo.OwnerID = owner
	todo.CreatedAt = now
	todo.UpdatedAt = now

	pattern, err := marshalPattern(todo.RecurringPattern)
	if err != nil {
		return models.Todo{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO todos (
			id, owner_id, text, completed, folder_id,
			due_date, reminder_at, recurring_pattern,
			completed_occurrences, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		todo.ID, todo.OwnerID, todo.Text, boolToInt(todo.Completed), todo.FolderID,
		sqliteTime(todo.DueDate), sqliteTime(todo.ReminderAt), pattern,
		todo.CompletedOccurrences, now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return models.Todo{}, fmt.Errorf("creating todo: %w", err)
	}

	s.observers.emit(ChangeEvent{Owner: owner, Kind: ChangeTodos})
	return todo, nil
}

// UpdateTodo updates an existing todo by ID.
func (s *SQLiteStore) UpdateTodo(ctx context.Context, owner string, todo models.Todo) error {
	todo.UpdatedAt = time.Now()

	pattern, err := marshalPattern(todo.RecurringPattern)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE todos SET
			text = ?, completed = ?, folder_id = ?,
			due_date = ?, reminder_at = ?, recurring_pattern = ?,
			completed_occurrences = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		todo.Text, boolToInt(todo.Completed), todo.FolderID,
		sqliteTime(todo.DueDate), sqliteTime(todo.ReminderAt), pattern,
		todo.CompletedOccurrences, todo.UpdatedAt.Format(time.RFC3339),
		todo.ID, owner,
	)
	if err != nil {
		return fmt.Errorf("updating todo %s: %w", todo.ID, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("todo %s: %w", todo.ID, ErrNotFound)
	}

	s.observers.emit(ChangeEvent{Owner: owner, Kind: ChangeTodos})
	return nil
}

// DeleteTodo removes a todo and its completion records.
func (s *SQLiteStore) DeleteTodo(ctx context.Context, owner, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		"DELETE FROM todos WHERE id = ? AND owner_id = ?", id, owner)
	if err != nil {
		return fmt.Errorf("deleting todo %s: %w", id, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("todo %s: %w", id, ErrNotFound)
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM completion_records WHERE todo_id = ?", id); err != nil {
		return fmt.Errorf("deleting completion records for %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}

	s.observers.emit(ChangeEvent{Owner: owner, Kind: ChangeTodos})
	return nil
}

// GetTodo retrieves a single todo by ID.
func (s *SQLiteStore) GetTodo(ctx context.Context, owner, id string) (models.Todo, error) {
	row := s.db.QueryRowxContext(ctx,
		"SELECT * FROM todos WHERE id = ? AND owner_id = ?", id, owner)
	todo, err := scanSQLiteTodo(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Todo{}, fmt.Errorf("todo %s: %w", id, ErrNotFound)
		}
		return models.Todo{}, fmt.Errorf("getting todo %s: %w", id, err)
	}
	return todo, nil
}

// ListTodos retrieves all todos for the owner, oldest first.
func (s *SQLiteStore) ListTodos(ctx context.Context, owner string) ([]models.Todo, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT * FROM todos WHERE owner_id = ? ORDER BY created_at, id", owner)
	if err != nil {
		return nil, fmt.Errorf("querying todos: %w", err)
	}
	defer rows.Close()

	var todos []models.Todo
	for rows.Next() {
		todo, err := scanSQLiteTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning todo row: %w", err)
		}
		todos = append(todos, todo)
	}
	return todos, rows.Err()
}

// AdvanceTodo archives the completed occurrence and inserts its successor in
// one transaction.
func (s *SQLiteStore) AdvanceTodo(ctx context.Context, owner string, completed models.Todo, successor *models.Todo) (*models.Todo, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	completedPattern, err := marshalPattern(completed.RecurringPattern)
	if err != nil {
		return nil, err
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE todos SET
			completed = 1, completed_occurrences = ?,
			recurring_pattern = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		completed.CompletedOccurrences, completedPattern,
		now.Format(time.RFC3339), completed.ID, owner,
	)
	if err != nil {
		return nil, fmt.Errorf("archiving todo %s: %w", completed.ID, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, fmt.Errorf("todo %s: %w", completed.ID, ErrNotFound)
	}

	var stored *models.Todo
	if successor != nil {
		next := *successor
		if next.ID == "" || next.IsOptimistic() {
			next.ID = uuid.New().String()
		}
		next.OwnerID = owner
		next.CreatedAt = now
		next.UpdatedAt = now

		pattern, err := marshalPattern(next.RecurringPattern)
		if err != nil {
			return nil, err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO todos (
				id, owner_id, text, completed, folder_id,
				due_date, reminder_at, recurring_pattern,
				completed_occurrences, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			next.ID, next.OwnerID, next.Text, boolToInt(next.Completed), next.FolderID,
			sqliteTime(next.DueDate), sqliteTime(next.ReminderAt), pattern,
			next.CompletedOccurrences, now.Format(time.RFC3339), now.Format(time.RFC3339),
		)
		if err != nil {
			return nil, fmt.Errorf("inserting successor todo: %w", err)
		}
		stored = &next
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing advance: %w", err)
	}

	s.observers.emit(ChangeEvent{Owner: owner, Kind: ChangeTodos})
	return stored, nil
}

// UpsertCompletionRecord writes a ledger entry keyed by
// (todo_id, scheduled_date), overwriting any prior entry for that key.
func (s *SQLiteStore) UpsertCompletionRecord(ctx context.Context, owner string, rec models.CompletionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	now := time.Now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO completion_records (
			id, owner_id, todo_id, scheduled_date, completed_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(todo_id, scheduled_date) DO UPDATE SET
			completed_at = excluded.completed_at,
			updated_at = excluded.updated_at`,
		rec.ID, owner, rec.TodoID, formatScheduledDate(rec.ScheduledDate),
		sqliteTime(rec.CompletedAt), now.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("upserting completion record: %w", err)
	}

	s.observers.emit(ChangeEvent{Owner: owner, Kind: ChangeCompletions})
	return nil
}

// ListCompletionRecords returns the ledger entries for the owner whose
// scheduled date falls in [from, to]. Callers build an in-memory index from
// the result instead of issuing per-occurrence lookups.
func (s *SQLiteStore) ListCompletionRecords(ctx context.Context, owner string, from, to time.Time) ([]models.CompletionRecord, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, owner_id, todo_id, scheduled_date, completed_at, updated_at
		FROM completion_records
		WHERE owner_id = ? AND scheduled_date >= ? AND scheduled_date <= ?
		ORDER BY scheduled_date`,
		owner, formatScheduledDate(from), formatScheduledDate(to),
	)
	if err != nil {
		return nil, fmt.Errorf("querying completion records: %w", err)
	}
	defer rows.Close()

	var records []models.CompletionRecord
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Subscribe registers fn for in-process change events scoped to owner.
func (s *SQLiteStore) Subscribe(owner string, fn func(ChangeEvent)) (func(), error) {
	return s.observers.add(owner, fn), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteTodo(row rowScanner) (models.Todo, error) {
	var (
		todo       models.Todo
		completed  int
		folderID   sql.NullString
		dueDate    sql.NullString
		reminderAt sql.NullString
		pattern    sql.NullString
		createdAt  string
		updatedAt  string
	)

	err := row.Scan(
		&todo.ID, &todo.OwnerID, &todo.Text, &completed, &folderID,
		&dueDate, &reminderAt, &pattern,
		&todo.CompletedOccurrences, &createdAt, &updatedAt,
	)
	if err != nil {
		return models.Todo{}, err
	}

	todo.Completed = completed != 0
	if folderID.Valid {
		todo.FolderID = &folderID.String
	}
	if todo.DueDate, err = parseSQLiteTime(dueDate); err != nil {
		return models.Todo{}, err
	}
	if todo.ReminderAt, err = parseSQLiteTime(reminderAt); err != nil {
		return models.Todo{}, err
	}
	if todo.RecurringPattern, err = unmarshalPattern(pattern); err != nil {
		return models.Todo{}, err
	}
	if todo.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return models.Todo{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if todo.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return models.Todo{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	todo.CreatedAt = todo.CreatedAt.Local()
	todo.UpdatedAt = todo.UpdatedAt.Local()
	return todo, nil
}

func scanSQLiteRecord(row rowScanner) (models.CompletionRecord, error) {
	var (
		rec         models.CompletionRecord
		scheduled   string
		completedAt sql.NullString
		updatedAt   string
	)

	err := row.Scan(&rec.ID, &rec.OwnerID, &rec.TodoID, &scheduled, &completedAt, &updatedAt)
	if err != nil {
		return models.CompletionRecord{}, fmt.Errorf("scanning completion record: %w", err)
	}

	if rec.ScheduledDate, err = parseScheduledDate(scheduled); err != nil {
		return models.CompletionRecord{}, err
	}
	if rec.CompletedAt, err = parseSQLiteTime(completedAt); err != nil {
		return models.CompletionRecord{}, err
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return models.CompletionRecord{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	rec.UpdatedAt = rec.UpdatedAt.Local()
	return rec, nil
}

// sqliteTime renders an optional timestamp as RFC3339 text, or NULL.
func sqliteTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

func parseSQLiteTime(raw sql.NullString) (*time.Time, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw.String)
	if err != nil {
		return nil, fmt.Errorf("parsing timestamp %q: %w", raw.String, err)
	}
	local := t.Local()
	return &local, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
