package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/k-negishi/chat-scheduler/internal/domain"
)

// pgUniqueViolation 一意制約違反の SQLSTATE
const pgUniqueViolation = "23505"

// dbtx プールとトランザクションの共通インターフェース
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore PostgreSQLを使用したイベント・カテゴリ・TODOのリポジトリ
type PostgresStore struct {
	pool *pgxpool.Pool
	db   dbtx
}

// NewPostgresStore 接続プールを作成し、疎通を確認する
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("データベース接続プールの作成に失敗しました: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("データベースへの接続に失敗しました: %w", err)
	}
	return &PostgresStore{pool: pool, db: pool}, nil
}

// Close 接続プールを閉じる
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS categories (
		id          BIGSERIAL PRIMARY KEY,
		name        TEXT NOT NULL,
		color       TEXT NOT NULL DEFAULT '#3B82F6',
		description TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	// カテゴリ名は大文字小文字を区別せず一意
	`CREATE UNIQUE INDEX IF NOT EXISTS categories_lower_name_idx ON categories (lower(name))`,

	`CREATE TABLE IF NOT EXISTS events (
		id              BIGSERIAL PRIMARY KEY,
		user_id         TEXT NOT NULL,
		title           TEXT NOT NULL,
		date            DATE NOT NULL,
		start_time      TIME NOT NULL DEFAULT '00:00',
		end_time        TIME,
		is_all_day      BOOLEAN NOT NULL DEFAULT false,
		category_id     BIGINT REFERENCES categories(id) ON DELETE SET NULL,
		duration        TEXT NOT NULL DEFAULT '',
		recurrence_rule TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS events_user_date_idx ON events (user_id, date)`,

	`CREATE TABLE IF NOT EXISTS todos (
		id                 BIGSERIAL PRIMARY KEY,
		user_id            TEXT NOT NULL,
		title              TEXT NOT NULL,
		description        TEXT NOT NULL DEFAULT '',
		priority           TEXT NOT NULL DEFAULT 'medium'
		                   CHECK (priority IN ('low', 'medium', 'high')),
		due_date           DATE,
		estimated_duration TEXT NOT NULL DEFAULT '',
		category_id        BIGINT REFERENCES categories(id) ON DELETE SET NULL,
		completed          BOOLEAN NOT NULL DEFAULT false,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS todos_user_idx ON todos (user_id)`,
}

// EnsureSchema テーブルとインデックスを作成（冪等）
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("スキーマの作成に失敗しました: %w", err)
		}
	}
	return nil
}

// --- イベント ---

const eventColumns = `id::text, title, to_char(date, 'YYYY-MM-DD'), to_char(start_time, 'HH24:MI'),
	to_char(end_time, 'HH24:MI'), is_all_day, COALESCE(category_id::text, ''), duration, recurrence_rule`

// eventRecord events テーブルの1行
type eventRecord struct {
	ID             string
	Title          string
	Date           string
	StartTime      string
	EndTime        *string
	IsAllDay       bool
	CategoryID     string
	Duration       string
	RecurrenceRule string
}

func (r *eventRecord) scan(row pgx.Row) error {
	return row.Scan(&r.ID, &r.Title, &r.Date, &r.StartTime, &r.EndTime,
		&r.IsAllDay, &r.CategoryID, &r.Duration, &r.RecurrenceRule)
}

// toDomain ドメインエンティティに変換
func (r eventRecord) toDomain() (domain.Event, error) {
	date, err := civil.ParseDate(r.Date)
	if err != nil {
		return domain.Event{}, fmt.Errorf("日付の解析に失敗しました: %w", err)
	}
	start, err := domain.ParseClock(r.StartTime)
	if err != nil {
		return domain.Event{}, err
	}

	event := domain.Event{
		ID:             r.ID,
		Title:          r.Title,
		Date:           date,
		StartTime:      start,
		IsAllDay:       r.IsAllDay,
		CategoryID:     r.CategoryID,
		Duration:       r.Duration,
		RecurrenceRule: r.RecurrenceRule,
	}
	if event.Title == "" {
		event.Title = domain.UntitledTitle
	}
	if r.EndTime != nil {
		end, err := domain.ParseClock(*r.EndTime)
		if err != nil {
			return domain.Event{}, err
		}
		event.EndTime = &end
	}
	return event, nil
}

// ListEvents ユーザーの全イベントを (日付, 開始時刻) 順で取得
func (s *PostgresStore) ListEvents(ctx context.Context, userID string) ([]domain.Event, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+eventColumns+` FROM events WHERE user_id = $1 ORDER BY date, is_all_day DESC, start_time, id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("イベント一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var record eventRecord
		if err := record.scan(rows); err != nil {
			return nil, fmt.Errorf("イベントの読み込みに失敗しました: %w", err)
		}
		event, err := record.toDomain()
		if err != nil {
			return nil, fmt.Errorf("イベント %s の変換に失敗しました: %w", record.ID, err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("イベント一覧の取得に失敗しました: %w", err)
	}
	return events, nil
}

// CreateEvent イベントを作成
func (s *PostgresStore) CreateEvent(ctx context.Context, userID string, fields domain.EventFields) (domain.Event, error) {
	var record eventRecord
	err := record.scan(s.db.QueryRow(ctx,
		`INSERT INTO events (user_id, title, date, start_time, end_time, category_id, duration, recurrence_rule)
		VALUES ($1, $2, $3::date, $4::time, $5::time, $6::bigint, $7, $8)
		RETURNING `+eventColumns,
		userID,
		fields.Title,
		fields.Date.String(),
		domain.FormatClock(fields.StartTime),
		domain.FormatClock(fields.EndTime),
		nullableID(fields.CategoryID),
		fields.Duration,
		fields.RecurrenceRule,
	))
	if err != nil {
		return domain.Event{}, fmt.Errorf("イベントの作成に失敗しました: %w", err)
	}
	return record.toDomain()
}

// UpdateEvent パッチの nil でないフィールドだけを更新
func (s *PostgresStore) UpdateEvent(ctx context.Context, userID, eventID string, patch domain.EventPatch) (domain.Event, error) {
	if !validID(eventID) {
		return domain.Event{}, fmt.Errorf("イベント %s: %w", eventID, domain.ErrNotFound)
	}

	var date, start, end, categoryID *string
	if patch.Date != nil {
		date = ptr(patch.Date.String())
	}
	if patch.StartTime != nil {
		start = ptr(domain.FormatClock(*patch.StartTime))
	}
	if patch.EndTime != nil {
		end = ptr(domain.FormatClock(*patch.EndTime))
	}
	if patch.CategoryID != nil {
		categoryID = nullableID(*patch.CategoryID)
	}

	var record eventRecord
	err := record.scan(s.db.QueryRow(ctx,
		`UPDATE events SET
			title       = COALESCE($3::text, title),
			date        = COALESCE($4::date, date),
			start_time  = COALESCE($5::time, start_time),
			end_time    = COALESCE($6::time, end_time),
			is_all_day  = is_all_day AND $5::time IS NULL AND $6::time IS NULL,
			category_id = COALESCE($7::bigint, category_id),
			duration    = COALESCE($8::text, duration)
		WHERE id = $1::bigint AND user_id = $2
		RETURNING `+eventColumns,
		eventID, userID, patch.Title, date, start, end, categoryID, patch.Duration,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Event{}, fmt.Errorf("イベント %s: %w", eventID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Event{}, fmt.Errorf("イベントの更新に失敗しました: %w", err)
	}
	return record.toDomain()
}

// DeleteEvent イベントを削除
func (s *PostgresStore) DeleteEvent(ctx context.Context, userID, eventID string) error {
	if !validID(eventID) {
		return fmt.Errorf("イベント %s: %w", eventID, domain.ErrNotFound)
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM events WHERE id = $1::bigint AND user_id = $2`, eventID, userID)
	if err != nil {
		return fmt.Errorf("イベントの削除に失敗しました: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("イベント %s: %w", eventID, domain.ErrNotFound)
	}
	return nil
}

// --- カテゴリ ---

// ListCategories 全カテゴリを利用件数付きで取得
func (s *PostgresStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := s.db.Query(ctx,
		`SELECT c.id::text, c.name, c.color, c.description,
			(SELECT count(*) FROM events e WHERE e.category_id = c.id) +
			(SELECT count(*) FROM todos t WHERE t.category_id = c.id)
		FROM categories c ORDER BY c.id`)
	if err != nil {
		return nil, fmt.Errorf("カテゴリ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var categories []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Color, &c.Description, &c.UsageCount); err != nil {
			return nil, fmt.Errorf("カテゴリの読み込みに失敗しました: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("カテゴリ一覧の取得に失敗しました: %w", err)
	}
	return categories, nil
}

// CreateCategory カテゴリを作成。同名が既にあれば domain.ErrCategoryExists
func (s *PostgresStore) CreateCategory(ctx context.Context, fields domain.CategoryFields) (domain.Category, error) {
	color := fields.Color
	if color == "" {
		color = domain.DefaultCategoryColor
	}

	var c domain.Category
	err := s.db.QueryRow(ctx,
		`INSERT INTO categories (name, color, description) VALUES ($1, $2, $3)
		RETURNING id::text, name, color, description`,
		fields.Name, color, fields.Description,
	).Scan(&c.ID, &c.Name, &c.Color, &c.Description)
	if isUniqueViolation(err) {
		return domain.Category{}, fmt.Errorf("カテゴリ %q: %w", fields.Name, domain.ErrCategoryExists)
	}
	if err != nil {
		return domain.Category{}, fmt.Errorf("カテゴリの作成に失敗しました: %w", err)
	}
	return c, nil
}

// --- TODO ---

// CreateTodo TODOを作成
func (s *PostgresStore) CreateTodo(ctx context.Context, userID string, fields domain.TodoFields) (domain.Todo, error) {
	var dueDate *string
	if fields.DueDate != nil {
		dueDate = ptr(fields.DueDate.String())
	}

	var (
		todo     domain.Todo
		priority string
		due      *string
	)
	err := s.db.QueryRow(ctx,
		`INSERT INTO todos (user_id, title, description, priority, due_date, estimated_duration, category_id)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7::bigint)
		RETURNING id::text, title, description, priority, to_char(due_date, 'YYYY-MM-DD'),
			estimated_duration, COALESCE(category_id::text, ''), completed`,
		userID, fields.Title, fields.Description, string(domain.ParsePriority(string(fields.Priority))),
		dueDate, fields.EstimatedDuration, nullableID(fields.CategoryID),
	).Scan(&todo.ID, &todo.Title, &todo.Description, &priority, &due,
		&todo.EstimatedDuration, &todo.CategoryID, &todo.Completed)
	if err != nil {
		return domain.Todo{}, fmt.Errorf("TODOの作成に失敗しました: %w", err)
	}

	todo.Priority = domain.Priority(priority)
	if due != nil {
		d, err := civil.ParseDate(*due)
		if err != nil {
			return domain.Todo{}, fmt.Errorf("期限日の解析に失敗しました: %w", err)
		}
		todo.DueDate = &d
	}
	return todo, nil
}

// --- ヘルパー ---

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// validID 数値以外のIDはどの行にも一致しない
func validID(id string) bool {
	_, err := strconv.ParseInt(id, 10, 64)
	return err == nil
}

// nullableID 空文字や数値でないIDは NULL として扱う
func nullableID(id string) *string {
	if !validID(id) {
		return nil
	}
	return &id
}

func ptr(s string) *string {
	return &s
}
