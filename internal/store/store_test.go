package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nishchay-veer/chat-lingo/internal/voicechat"
)

// getTestDB returns a database pool for testing.
// Skips the test if DATABASE_URL is not set.
func getTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.Ping(ctx); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	if err := New(db).EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}

	return db
}

func TestLessonOperations(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	s := New(db)
	ctx := context.Background()

	unit := int64(9001)
	first, err := s.CreateLesson(ctx, "Ordering coffee", &unit)
	if err != nil {
		t.Fatalf("CreateLesson failed: %v", err)
	}
	defer s.DeleteLesson(ctx, first.ID)

	second, err := s.CreateLesson(ctx, "Asking for directions", &unit)
	if err != nil {
		t.Fatalf("CreateLesson failed: %v", err)
	}
	defer s.DeleteLesson(ctx, second.ID)

	if second.Order != first.Order+1 {
		t.Errorf("second order = %d, want %d", second.Order, first.Order+1)
	}

	got, err := s.GetLesson(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetLesson failed: %v", err)
	}
	if got == nil || got.Title != "Ordering coffee" {
		t.Errorf("GetLesson = %+v", got)
	}

	lessons, err := s.ListLessons(ctx, 500)
	if err != nil {
		t.Fatalf("ListLessons failed: %v", err)
	}
	seen := 0
	for _, l := range lessons {
		if l.ID == first.ID || l.ID == second.ID {
			seen++
		}
	}
	if seen != 2 {
		t.Errorf("ListLessons returned %d of the 2 created lessons", seen)
	}

	lesson, err := s.Resolve(ctx, first.ID)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if lesson.Title != "Ordering coffee" || lesson.ID != first.ID {
		t.Errorf("Resolve = %+v", lesson)
	}
}

func TestGetLesson_NotFound(t *testing.T) {
	db := getTestDB(t)
	defer db.Close()

	s := New(db)
	ctx := context.Background()

	got, err := s.GetLesson(ctx, -1)
	if err != nil {
		t.Fatalf("GetLesson failed: %v", err)
	}
	if got != nil {
		t.Errorf("GetLesson = %+v, want nil", got)
	}

	_, err = s.Resolve(ctx, -1)
	if !errors.Is(err, voicechat.ErrLessonNotFound) || !errors.Is(err, ErrNotFound) {
		t.Errorf("Resolve err = %v, want a lesson-not-found error", err)
	}
}
