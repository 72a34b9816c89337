package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
	"github.com/kirillkom/homebuyer-advisor/internal/core/ports"
)

const defaultIndexBatchSize = 64

// IndexListingsUseCase pages listings out of the warehouse, embeds their
// descriptions and upserts them into the vector store.
type IndexListingsUseCase struct {
	warehouse ports.ListingWarehouse
	embedder  ports.Embedder
	indexer   ports.ListingIndexer
	batchSize int
}

func NewIndexListingsUseCase(
	warehouse ports.ListingWarehouse,
	embedder ports.Embedder,
	indexer ports.ListingIndexer,
	batchSize int,
) *IndexListingsUseCase {
	if batchSize <= 0 {
		batchSize = defaultIndexBatchSize
	}
	return &IndexListingsUseCase{
		warehouse: warehouse,
		embedder:  embedder,
		indexer:   indexer,
		batchSize: batchSize,
	}
}

func (uc *IndexListingsUseCase) Reindex(ctx context.Context) (int, error) {
	indexed := 0
	after := ""
	for {
		batch, err := uc.warehouse.ListListings(ctx, after, uc.batchSize)
		if err != nil {
			return indexed, fmt.Errorf("list listings after %q: %w", after, err)
		}
		if len(batch) == 0 {
			return indexed, nil
		}

		texts := make([]string, len(batch))
		for i, l := range batch {
			texts[i] = ListingEmbeddingText(l)
		}
		vectors, err := uc.embedder.Embed(ctx, texts)
		if err != nil {
			return indexed, fmt.Errorf("embed listings: %w", err)
		}
		if len(vectors) != len(batch) {
			return indexed, domain.WrapError(
				domain.ErrInternal,
				"embed listings",
				fmt.Errorf("got %d vectors for %d listings", len(vectors), len(batch)),
			)
		}
		if err := uc.indexer.IndexListings(ctx, batch, vectors); err != nil {
			return indexed, fmt.Errorf("index listings: %w", err)
		}

		indexed += len(batch)
		after = batch[len(batch)-1].ID
		slog.Info("listings_indexed", "batch", len(batch), "total", indexed)
		if len(batch) < uc.batchSize {
			return indexed, nil
		}
	}
}

// ListingEmbeddingText is the text embedded for a listing.
func ListingEmbeddingText(l domain.Listing) string {
	parts := make([]string, 0, 4)
	kind := "house"
	if l.PropertyType != "" {
		kind = strings.ToLower(l.PropertyType)
	}
	parts = append(parts, fmt.Sprintf("%s bedroom %s bathroom %s", formatCount(l.Bedrooms), formatCount(l.Bathrooms), kind))
	if l.Price > 0 {
		parts = append(parts, "priced at "+formatMoney(l.Price))
	}
	if l.SquareFootage > 0 {
		parts = append(parts, fmt.Sprintf("%.0f square feet", l.SquareFootage))
	}
	text := "A " + strings.Join(parts, ", ") + "."
	if d := strings.TrimSpace(l.Description); d != "" {
		text += " " + d
	}
	return text
}
