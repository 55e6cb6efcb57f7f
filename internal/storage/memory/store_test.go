package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/JakeFAU/archive-harvester/internal/crawler"
)

func TestRecordStoreLifecycle(t *testing.T) {
	t.Parallel()

	store := NewRecordStore()
	ctx := context.Background()

	if _, ok, err := store.MaxID(ctx); err != nil || ok {
		t.Fatalf("MaxID() on empty store: ok=%v err=%v", ok, err)
	}
	records := []crawler.FieldRecord{{ID: 4, URL: "u4"}, {ID: 2, URL: "u2"}}
	if err := store.Append(ctx, records); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	maxID, ok, err := store.MaxID(ctx)
	if err != nil || !ok || maxID != 4 {
		t.Fatalf("MaxID() = %d, %v, %v; want 4, true, nil", maxID, ok, err)
	}
	count, err := store.Count(ctx)
	if err != nil || count != 2 {
		t.Fatalf("Count() = %d, %v; want 2", count, err)
	}
	listed, err := store.List(ctx)
	if err != nil || len(listed) != 2 {
		t.Fatalf("List() unexpected result: %v %v", listed, err)
	}
	listed[0].URL = "modified"
	if store.records[0].URL != "u4" {
		t.Fatal("expected List to return a copy")
	}
}

func TestCursorStoreLifecycle(t *testing.T) {
	t.Parallel()

	store := NewCursorStore()
	ctx := context.Background()

	if _, err := store.Load(ctx); !errors.Is(err, crawler.ErrStateNotFound) {
		t.Fatalf("Load() error = %v, want ErrStateNotFound", err)
	}
	want := crawler.CrawlState{LastID: 9, TotalCollected: 9, RoundCount: 5}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil || got != want {
		t.Fatalf("Load() = %+v, %v; want %+v", got, err, want)
	}
}
