package store

import (
	"context"
	"slices"
	"testing"
)

func TestLoadIDs_Empty(t *testing.T) {
	s := createTestStore(t)

	ids, err := s.LoadIDs(context.Background())
	if err != nil {
		t.Fatalf("LoadIDs() failed: %v", err)
	}
	if ids == nil || len(ids) != 0 {
		t.Errorf("LoadIDs() = %#v, want empty non-nil slice", ids)
	}
}

func TestSaveIDs_PreservesOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	want := []string{"<c@mail>", "<a@mail>", "<b@mail>"}
	if err := s.SaveIDs(ctx, want); err != nil {
		t.Fatalf("SaveIDs() failed: %v", err)
	}

	got, err := s.LoadIDs(ctx)
	if err != nil {
		t.Fatalf("LoadIDs() failed: %v", err)
	}
	if !slices.Equal(got, want) {
		t.Errorf("LoadIDs() = %v, want %v", got, want)
	}
}

func TestSaveIDs_FullRewrite(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.SaveIDs(ctx, []string{"a", "b", "c"}); err != nil {
		t.Fatalf("SaveIDs() failed: %v", err)
	}
	if err := s.SaveIDs(ctx, []string{"a", "d"}); err != nil {
		t.Fatalf("SaveIDs() failed: %v", err)
	}

	got, err := s.LoadIDs(ctx)
	if err != nil {
		t.Fatalf("LoadIDs() failed: %v", err)
	}
	if !slices.Equal(got, []string{"a", "d"}) {
		t.Errorf("LoadIDs() = %v, want [a d]", got)
	}
}

func TestSaveIDs_DuplicatesCollapse(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.SaveIDs(ctx, []string{"a", "a", "b"}); err != nil {
		t.Fatalf("SaveIDs() failed: %v", err)
	}
	got, err := s.LoadIDs(ctx)
	if err != nil {
		t.Fatalf("LoadIDs() failed: %v", err)
	}
	if !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("LoadIDs() = %v, want [a b]", got)
	}
}

func TestSaveIDs_CancelledContextKeepsPrevious(t *testing.T) {
	s := createTestStore(t)

	if err := s.SaveIDs(context.Background(), []string{"keep"}); err != nil {
		t.Fatalf("SaveIDs() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.SaveIDs(ctx, []string{"lost"}); err == nil {
		t.Fatal("SaveIDs() with cancelled context should fail")
	}

	got, err := s.LoadIDs(context.Background())
	if err != nil {
		t.Fatalf("LoadIDs() failed: %v", err)
	}
	if !slices.Equal(got, []string{"keep"}) {
		t.Errorf("LoadIDs() = %v, want [keep]", got)
	}
}
