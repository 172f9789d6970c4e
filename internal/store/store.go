package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nishchay-veer/chat-lingo/internal/voicechat"
)

// ErrNotFound is wrapped by lookups that require a row.
var ErrNotFound = errors.New("store: not found")

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the tables the service needs if they are missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Lesson is one lesson of a course unit.
type Lesson struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	UnitID    *int64    `json:"unit_id,omitempty"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`
}

// ============================================================================
// Lesson operations
// ============================================================================

// GetLesson returns the lesson with id, or (nil, nil) if there is none.
func (s *Store) GetLesson(ctx context.Context, id int64) (*Lesson, error) {
	var l Lesson
	err := s.db.QueryRow(ctx, `
		SELECT id, title, unit_id, "order", created_at
		FROM lessons
		WHERE id = $1
	`, id).Scan(&l.ID, &l.Title, &l.UnitID, &l.Order, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// ListLessons returns lessons in course order.
func (s *Store) ListLessons(ctx context.Context, limit int) ([]Lesson, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, title, unit_id, "order", created_at
		FROM lessons
		ORDER BY unit_id NULLS LAST, "order", id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Lesson
	for rows.Next() {
		var l Lesson
		if err := rows.Scan(&l.ID, &l.Title, &l.UnitID, &l.Order, &l.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// CreateLesson inserts a lesson at the end of its unit.
func (s *Store) CreateLesson(ctx context.Context, title string, unitID *int64) (*Lesson, error) {
	var l Lesson
	err := s.db.QueryRow(ctx, `
		INSERT INTO lessons (title, unit_id, "order")
		VALUES ($1, $2, COALESCE((SELECT MAX("order") + 1 FROM lessons WHERE unit_id IS NOT DISTINCT FROM $2), 1))
		RETURNING id, title, unit_id, "order", created_at
	`, title, unitID).Scan(&l.ID, &l.Title, &l.UnitID, &l.Order, &l.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// DeleteLesson removes a lesson.
func (s *Store) DeleteLesson(ctx context.Context, id int64) error {
	_, err := s.db.Exec(ctx, `DELETE FROM lessons WHERE id = $1`, id)
	return err
}

// Resolve implements voicechat.LessonContextProvider.
func (s *Store) Resolve(ctx context.Context, lessonID int64) (voicechat.Lesson, error) {
	l, err := s.GetLesson(ctx, lessonID)
	if err != nil {
		return voicechat.Lesson{}, fmt.Errorf("get lesson %d: %w", lessonID, err)
	}
	if l == nil {
		return voicechat.Lesson{}, fmt.Errorf("lesson %d: %w: %w", lessonID, voicechat.ErrLessonNotFound, ErrNotFound)
	}
	return voicechat.Lesson{ID: l.ID, Title: l.Title}, nil
}
