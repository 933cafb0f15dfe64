package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/julianstephens/evertodo/internal/logger"
	"github.com/julianstephens/evertodo/internal/models"
)

// notifyChannel is the LISTEN/NOTIFY channel fed by the row triggers
// installed in the postgres migrations.
const notifyChannel = "evertodo_changes"

const (
	listenerMinReconnect = 2 * time.Second
	listenerMaxReconnect = time.Minute
)

// PostgresStore is the authenticated/remote backend. Identifiers are
// database-assigned positive integers carried as decimal strings. Change
// events arrive over LISTEN/NOTIFY, so mutations made by other devices of
// the same owner reach every subscribed session.
type PostgresStore struct {
	connStr string
	db      *sqlx.DB

	observers *observerSet

	mu       sync.Mutex
	listener *pq.Listener
}

func NewPostgresStore(connStr string) *PostgresStore {
	return &PostgresStore{
		connStr:   connStr,
		observers: newObserverSet(),
	}
}

// Init opens the connection, verifies it, and runs pending migrations.
func (s *PostgresStore) Init(ctx context.Context) error {
	db, err := sqlx.Open("postgres", s.connStr)
	if err != nil {
		return fmt.Errorf("opening postgres db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("connecting to database: %w", err)
	}

	s.db = db
	versionTableQuery := `
		SELECT COUNT(*) FROM information_schema.tables
		WHERE table_name = 'schema_version'`
	if err := runMigrations(db, postgresMigrations, versionTableQuery); err != nil {
		db.Close()
		s.db = nil
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
		s.listener = nil
	}
	s.mu.Unlock()

	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// CreateTodo inserts a new todo; the database assigns the ID.
func (s *PostgresStore) CreateTodo(ctx context.Context, owner string, todo models.Todo) (models.Todo, error) {
	now := time.Now()
	todo.OwnerID = owner
	todo.CreatedAt = now
	todo.UpdatedAt = now

	pattern, err := marshalPattern(todo.RecurringPattern)
	if err != nil {
		return models.Todo{}, err
	}

	var id int64
	err = s.db.QueryRowxContext(ctx, `
		INSERT INTO todos (
			owner_id, text, completed, folder_id,
			due_date, reminder_at, recurring_pattern,
			completed_occurrences, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		todo.OwnerID, todo.Text, todo.Completed, todo.FolderID,
		todo.DueDate, todo.ReminderAt, pattern,
		todo.CompletedOccurrences, now, now,
	).Scan(&id)
	if err != nil {
		return models.Todo{}, fmt.Errorf("creating todo: %w", err)
	}

	todo.ID = strconv.FormatInt(id, 10)
	return todo, nil
}

// UpdateTodo updates an existing todo by ID.
func (s *PostgresStore) UpdateTodo(ctx context.Context, owner string, todo models.Todo) error {
	id, err := parseRemoteID(todo.ID)
	if err != nil {
		return err
	}
	todo.UpdatedAt = time.Now()

	pattern, err := marshalPattern(todo.RecurringPattern)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE todos SET
			text = $1, completed = $2, folder_id = $3,
			due_date = $4, reminder_at = $5, recurring_pattern = $6,
			completed_occurrences = $7, updated_at = $8
		WHERE id = $9 AND owner_id = $10`,
		todo.Text, todo.Completed, todo.FolderID,
		todo.DueDate, todo.ReminderAt, pattern,
		todo.CompletedOccurrences, todo.UpdatedAt,
		id, owner,
	)
	if err != nil {
		return fmt.Errorf("updating todo %s: %w", todo.ID, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("todo %s: %w", todo.ID, ErrNotFound)
	}
	return nil
}

// DeleteTodo removes a todo; completion records cascade.
func (s *PostgresStore) DeleteTodo(ctx context.Context, owner, id string) error {
	remoteID, err := parseRemoteID(id)
	if err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM todos WHERE id = $1 AND owner_id = $2", remoteID, owner)
	if err != nil {
		return fmt.Errorf("deleting todo %s: %w", id, err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("todo %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetTodo retrieves a single todo by ID.
func (s *PostgresStore) GetTodo(ctx context.Context, owner, id string) (models.Todo, error) {
	remoteID, err := parseRemoteID(id)
	if err != nil {
		return models.Todo{}, err
	}
	row := s.db.QueryRowxContext(ctx,
		"SELECT * FROM todos WHERE id = $1 AND owner_id = $2", remoteID, owner)
	todo, err := scanPostgresTodo(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Todo{}, fmt.Errorf("todo %s: %w", id, ErrNotFound)
		}
		return models.Todo{}, fmt.Errorf("getting todo %s: %w", id, err)
	}
	return todo, nil
}

// ListTodos retrieves all todos for the owner, oldest first.
func (s *PostgresStore) ListTodos(ctx context.Context, owner string) ([]models.Todo, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT * FROM todos WHERE owner_id = $1 ORDER BY created_at, id", owner)
	if err != nil {
		return nil, fmt.Errorf("querying todos: %w", err)
	}
	defer rows.Close()

	var todos []models.Todo
	for rows.Next() {
		todo, err := scanPostgresTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning todo row: %w", err)
		}
		todos = append(todos, todo)
	}
	return todos, rows.Err()
}

// AdvanceTodo archives the completed occurrence and inserts its successor in
// one transaction.
func (s *PostgresStore) AdvanceTodo(ctx context.Context, owner string, completed models.Todo, successor *models.Todo) (*models.Todo, error) {
	completedID, err := parseRemoteID(completed.ID)
	if err != nil {
		return nil, err
	}

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
			completed = TRUE, completed_occurrences = $1,
			recurring_pattern = $2, updated_at = $3
		WHERE id = $4 AND owner_id = $5`,
		completed.CompletedOccurrences, completedPattern, now, completedID, owner,
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
		next.OwnerID = owner
		next.CreatedAt = now
		next.UpdatedAt = now

		pattern, err := marshalPattern(next.RecurringPattern)
		if err != nil {
			return nil, err
		}
		var id int64
		err = tx.QueryRowxContext(ctx, `
			INSERT INTO todos (
				owner_id, text, completed, folder_id,
				due_date, reminder_at, recurring_pattern,
				completed_occurrences, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id`,
			next.OwnerID, next.Text, next.Completed, next.FolderID,
			next.DueDate, next.ReminderAt, pattern,
			next.CompletedOccurrences, now, now,
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("inserting successor todo: %w", err)
		}
		next.ID = strconv.FormatInt(id, 10)
		stored = &next
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing advance: %w", err)
	}
	return stored, nil
}

// UpsertCompletionRecord writes a ledger entry keyed by
// (todo_id, scheduled_date), overwriting any prior entry for that key.
// Concurrent writers race on the same key; the last durable write wins.
func (s *PostgresStore) UpsertCompletionRecord(ctx context.Context, owner string, rec models.CompletionRecord) error {
	todoID, err := parseRemoteID(rec.TodoID)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO completion_records (
			owner_id, todo_id, scheduled_date, completed_at, updated_at
		) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (todo_id, scheduled_date) DO UPDATE SET
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at`,
		owner, todoID, formatScheduledDate(rec.ScheduledDate),
		rec.CompletedAt, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("upserting completion record: %w", err)
	}
	return nil
}

// ListCompletionRecords returns the ledger entries for the owner whose
// scheduled date falls in [from, to].
func (s *PostgresStore) ListCompletionRecords(ctx context.Context, owner string, from, to time.Time) ([]models.CompletionRecord, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, owner_id, todo_id, scheduled_date, completed_at, updated_at
		FROM completion_records
		WHERE owner_id = $1 AND scheduled_date >= $2 AND scheduled_date <= $3
		ORDER BY scheduled_date`,
		owner, formatScheduledDate(from), formatScheduledDate(to),
	)
	if err != nil {
		return nil, fmt.Errorf("querying completion records: %w", err)
	}
	defer rows.Close()

	var records []models.CompletionRecord
	for rows.Next() {
		rec, err := scanPostgresRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Subscribe registers fn for change events scoped to owner. The first
// subscription starts a LISTEN loop; notifications are produced by the row
// triggers, so a session also hears its own writes.
func (s *PostgresStore) Subscribe(owner string, fn func(ChangeEvent)) (func(), error) {
	if err := s.ensureListener(); err != nil {
		return nil, err
	}
	return s.observers.add(owner, fn), nil
}

func (s *PostgresStore) ensureListener() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}

	listener := pq.NewListener(s.connStr, listenerMinReconnect, listenerMaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				logger.Warn("change listener event", "event", ev, "error", err)
			}
		})
	if err := listener.Listen(notifyChannel); err != nil {
		listener.Close()
		return fmt.Errorf("listening on %s: %w", notifyChannel, err)
	}

	s.listener = listener
	go s.dispatchNotifications(listener)
	return nil
}

// dispatchNotifications fans incoming notifications out to subscribers.
// Payload format is "table:owner" (see evertodo_notify_change).
func (s *PostgresStore) dispatchNotifications(listener *pq.Listener) {
	for n := range listener.Notify {
		if n == nil {
			// Reconnect marker; state may have been missed.
			continue
		}
		table, owner, ok := strings.Cut(n.Extra, ":")
		if !ok {
			logger.Warn("malformed change notification", "payload", n.Extra)
			continue
		}
		kind := ChangeTodos
		if table == "completion_records" {
			kind = ChangeCompletions
		}
		s.observers.emit(ChangeEvent{Owner: owner, Kind: kind})
	}
}

func parseRemoteID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid remote todo id %q", id)
	}
	return n, nil
}

func scanPostgresTodo(row rowScanner) (models.Todo, error) {
	var (
		todo       models.Todo
		id         int64
		folderID   sql.NullString
		dueDate    sql.NullTime
		reminderAt sql.NullTime
		pattern    sql.NullString
	)

	err := row.Scan(
		&id, &todo.OwnerID, &todo.Text, &todo.Completed, &folderID,
		&dueDate, &reminderAt, &pattern,
		&todo.CompletedOccurrences, &todo.CreatedAt, &todo.UpdatedAt,
	)
	if err != nil {
		return models.Todo{}, err
	}

	todo.ID = strconv.FormatInt(id, 10)
	if folderID.Valid {
		todo.FolderID = &folderID.String
	}
	todo.DueDate = localTimePtr(dueDate)
	todo.ReminderAt = localTimePtr(reminderAt)
	if todo.RecurringPattern, err = unmarshalPattern(pattern); err != nil {
		return models.Todo{}, err
	}
	todo.CreatedAt = todo.CreatedAt.Local()
	todo.UpdatedAt = todo.UpdatedAt.Local()
	return todo, nil
}

func scanPostgresRecord(row rowScanner) (models.CompletionRecord, error) {
	var (
		rec         models.CompletionRecord
		id          int64
		todoID      int64
		scheduled   string
		completedAt sql.NullTime
	)

	err := row.Scan(&id, &rec.OwnerID, &todoID, &scheduled, &completedAt, &rec.UpdatedAt)
	if err != nil {
		return models.CompletionRecord{}, fmt.Errorf("scanning completion record: %w", err)
	}

	rec.ID = strconv.FormatInt(id, 10)
	rec.TodoID = strconv.FormatInt(todoID, 10)
	if rec.ScheduledDate, err = parseScheduledDate(scheduled); err != nil {
		return models.CompletionRecord{}, err
	}
	rec.CompletedAt = localTimePtr(completedAt)
	rec.UpdatedAt = rec.UpdatedAt.Local()
	return rec, nil
}

func localTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	local := t.Time.Local()
	return &local
}

// HasEmbeddedCredentials reports whether a connection string carries a
// password inline. Inline credentials are rejected at startup; the keyring
// or environment should supply them instead.
func HasEmbeddedCredentials(connStr string) bool {
	rest := connStr
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	at := strings.Index(rest, "@")
	if at < 0 {
		return false
	}
	userinfo := rest[:at]
	return strings.Contains(userinfo, ":")
}
