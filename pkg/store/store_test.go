package store

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestMapNotFoundTranslatesNoRows(t *testing.T) {
	if got := mapNotFound(pgx.ErrNoRows); !errors.Is(got, ErrNotFound) {
		t.Fatalf("mapNotFound(pgx.ErrNoRows) = %v, want ErrNotFound", got)
	}
}

func TestMapNotFoundPassesOtherErrorsThrough(t *testing.T) {
	other := errors.New("connection reset")
	if got := mapNotFound(other); got != other {
		t.Fatalf("mapNotFound(other) = %v, want unchanged %v", got, other)
	}
}
