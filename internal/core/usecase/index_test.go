package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
)

func TestReindexPagesThroughWarehouse(t *testing.T) {
	warehouse := &warehouseFake{listings: []domain.Listing{
		{ID: "a", Price: 1}, {ID: "b", Price: 2}, {ID: "c", Price: 3},
		{ID: "d", Price: 4}, {ID: "e", Price: 5},
	}}
	indexer := &indexerFake{}
	embedder := &embedderFake{}
	uc := NewIndexListingsUseCase(warehouse, embedder, indexer, 2)

	n, err := uc.Reindex(context.Background())
	if err != nil {
		t.Fatalf("Reindex() error = %v", err)
	}
	if n != 5 {
		t.Fatalf("indexed = %d, want 5", n)
	}
	if len(indexer.batches) != 3 || len(indexer.batches[2]) != 1 || indexer.batches[2][0].ID != "e" {
		t.Fatalf("unexpected batches %+v", indexer.batches)
	}
	if embedder.embedCalls != 3 {
		t.Fatalf("embed calls = %d, want 3", embedder.embedCalls)
	}
}

func TestReindexRejectsVectorCountMismatch(t *testing.T) {
	warehouse := &warehouseFake{listings: []domain.Listing{{ID: "a"}, {ID: "b"}}}
	uc := NewIndexListingsUseCase(warehouse, &embedderFake{vectors: [][]float32{{1}}}, &indexerFake{}, 10)

	if _, err := uc.Reindex(context.Background()); !errors.Is(err, domain.ErrInternal) {
		t.Fatalf("expected internal error, got %v", err)
	}
}

func TestListingEmbeddingText(t *testing.T) {
	got := ListingEmbeddingText(domain.Listing{
		Bedrooms:      3,
		Bathrooms:     2.5,
		Price:         525000,
		SquareFootage: 1850,
		PropertyType:  "Condo",
		Description:   "Sunny corner unit.",
	})
	want := "A 3 bedroom 2.5 bathroom condo, priced at $525,000, 1850 square feet. Sunny corner unit."
	if got != want {
		t.Fatalf("ListingEmbeddingText() = %q, want %q", got, want)
	}
}
