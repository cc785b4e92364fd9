package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/jobpay/matchflow/internal/db"
	"github.com/jobpay/matchflow/internal/domain"
)

func TestUpsertCandidate_Created(t *testing.T) {
	repo, ms := newTestRepo(t)

	var gotKey string
	ms.setFn = func(_ context.Context, key string, _ []byte) error {
		gotKey = key
		return nil
	}

	created, err := repo.UpsertCandidate(context.Background(), testCandidate("c1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Fatal("expected created=true for new candidate")
	}
	if gotKey != domain.KeyPrefix+"candidate:c1" {
		t.Fatalf("unexpected key: %s", gotKey)
	}
}

func TestUpsertCandidate_Updated(t *testing.T) {
	repo, ms := newTestRepo(t)

	ms.existsFn = func(_ context.Context, _ string) (bool, error) {
		return true, nil
	}

	created, err := repo.UpsertCandidate(context.Background(), testCandidate("c1"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Fatal("expected created=false for existing candidate")
	}
}

func TestGetCandidate_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.GetCandidate(context.Background(), "absent")
	if !errors.Is(err, domain.ErrCandidateNotFound) {
		t.Fatalf("expected ErrCandidateNotFound, got %v", err)
	}
}

func TestGetCandidate_RoundTrip(t *testing.T) {
	repo, ms := newTestRepo(t)
	want := testCandidate("c1")

	ms.getFn = func(_ context.Context, key string) ([]byte, error) {
		if key != domain.KeyPrefix+"candidate:c1" {
			t.Errorf("unexpected key: %s", key)
		}
		return mustMarshal(t, want), nil
	}

	got, err := repo.GetCandidate(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "c1" || got.Name != want.Name || len(got.Skills) != 2 {
		t.Fatalf("unexpected candidate: %+v", got)
	}
}

func TestListCandidates_SortedAndSkipsDeleted(t *testing.T) {
	repo, ms := newTestRepo(t)

	c1 := mustMarshal(t, testCandidate("c1"))
	c3 := mustMarshal(t, testCandidate("c3"))

	ms.scanFn = func(_ context.Context, pattern string) ([]string, error) {
		if pattern != domain.KeyPrefix+"candidate:*" {
			t.Errorf("unexpected pattern: %s", pattern)
		}
		// Unsorted on purpose, c2 vanishes between SCAN and GET.
		return []string{
			domain.KeyPrefix + "candidate:c3",
			domain.KeyPrefix + "candidate:c1",
			domain.KeyPrefix + "candidate:c2",
		}, nil
	}
	ms.getFn = func(_ context.Context, key string) ([]byte, error) {
		switch key {
		case domain.KeyPrefix + "candidate:c1":
			return c1, nil
		case domain.KeyPrefix + "candidate:c3":
			return c3, nil
		}
		return nil, db.ErrKeyNotFound
	}

	got, err := repo.ListCandidates(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	if got[0].ID != "c1" || got[1].ID != "c3" {
		t.Fatalf("expected sorted ids [c1 c3], got [%s %s]", got[0].ID, got[1].ID)
	}
}

func TestDeleteCandidate_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)

	err := repo.DeleteCandidate(context.Background(), "absent")
	if !errors.Is(err, domain.ErrCandidateNotFound) {
		t.Fatalf("expected ErrCandidateNotFound, got %v", err)
	}
}

func TestDeleteCandidate_OK(t *testing.T) {
	repo, ms := newTestRepo(t)

	ms.existsFn = func(_ context.Context, _ string) (bool, error) { return true, nil }
	var delKey string
	ms.delFn = func(_ context.Context, key string) error {
		delKey = key
		return nil
	}

	if err := repo.DeleteCandidate(context.Background(), "c1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if delKey != domain.KeyPrefix+"candidate:c1" {
		t.Fatalf("unexpected key: %s", delKey)
	}
}

func TestGetJob_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)

	_, err := repo.GetJob(context.Background(), "absent")
	if !errors.Is(err, domain.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestUpsertJob_RoundTrip(t *testing.T) {
	repo, ms := newTestRepo(t)
	want := testJob("j1")

	var stored []byte
	ms.setFn = func(_ context.Context, key string, value []byte) error {
		if key != domain.KeyPrefix+"job:j1" {
			t.Errorf("unexpected key: %s", key)
		}
		stored = value
		return nil
	}

	created, err := repo.UpsertJob(context.Background(), want)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Fatal("expected created=true")
	}

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return stored, nil
	}
	got, err := repo.GetJob(context.Background(), "j1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != want.Title || got.Company != want.Company {
		t.Fatalf("unexpected job: %+v", got)
	}
}
