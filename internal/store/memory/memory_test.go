package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"gastos/internal/core"
	"gastos/internal/store"
)

func sample() core.Expense {
	return core.Expense{
		Amount:   decimal.RequireFromString("12.50"),
		Category: "Food",
		Date:     "2024-01-10",
	}
}

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	created, err := s.Create(ctx, sample())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected assigned id")
	}

	list, err := s.List(ctx)
	if err != nil || len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("unexpected list: %v err=%v", list, err)
	}

	created.Category = "Groceries"
	updated, err := s.Update(ctx, created)
	if err != nil || updated.Category != "Groceries" {
		t.Fatalf("unexpected update: %+v err=%v", updated, err)
	}

	if err := s.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, _ = s.List(ctx)
	if len(list) != 0 {
		t.Fatalf("expected empty store, got %v", list)
	}
}

func TestMemoryStoreErrors(t *testing.T) {
	ctx := context.Background()
	s := New()

	withID := sample()
	withID.ID = "x"
	if _, err := s.Create(ctx, withID); !errors.Is(err, store.ErrIDAssigned) {
		t.Fatalf("expected ErrIDAssigned, got %v", err)
	}

	bad := sample()
	bad.Category = " "
	if _, err := s.Create(ctx, bad); !errors.Is(err, core.ErrEmptyCategory) {
		t.Fatalf("expected ErrEmptyCategory, got %v", err)
	}

	missing := sample()
	missing.ID = "nope"
	if _, err := s.Update(ctx, missing); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
	if err := s.Delete(ctx, "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on delete, got %v", err)
	}
}

func TestListReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := New(sample())
	list, _ := s.List(ctx)
	list[0].Category = "Changed"
	again, _ := s.List(ctx)
	if again[0].Category != "Food" {
		t.Fatalf("store mutated through returned slice")
	}
}

func TestReadCSV(t *testing.T) {
	in := strings.Join([]string{
		"date,amount,category,description",
		"# comment",
		"2024-01-10,300,Food,lunch",
		"",
		"2024-02-05,\"150,5\",Transport",
		"not-a-date,1,Food",
		"2024-02-06,-1,Food",
		"2024-02-07,1",
	}, "\n")

	records, skipped := ReadCSV(strings.NewReader(in))
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(records), records)
	}
	if records[0].Description != "lunch" || records[1].Amount.String() != "150.5" {
		t.Fatalf("unexpected records: %+v", records)
	}
	if len(skipped) != 3 {
		t.Fatalf("expected 3 skipped rows, got %d: %v", len(skipped), skipped)
	}
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()

	// Missing file yields an empty store.
	s := NewFromFile(filepath.Join(dir, "missing.csv"))
	if list, _ := s.List(context.Background()); len(list) != 0 {
		t.Fatalf("expected empty store, got %v", list)
	}

	path := filepath.Join(dir, "seed.csv")
	if err := os.WriteFile(path, []byte("2024-01-10,300,Food\n2024-02-05,150,Transport\n"), 0o644); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	s = NewFromFile(path)
	list, _ := s.List(context.Background())
	if len(list) != 2 || list[0].ID == "" || list[0].ID == list[1].ID {
		t.Fatalf("unexpected seeded list: %+v", list)
	}
}
