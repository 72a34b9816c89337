package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
	"github.com/kirillkom/homebuyer-advisor/internal/infrastructure/resilience"
)

// listingNamespace keys point ids so re-indexing a listing overwrites its point.
var listingNamespace = uuid.MustParse("6f1c2a8e-5b0d-4c3e-9a7f-2d8b4e1f0c6a")

// indexedFields are the payload fields qdrant keeps secondary indexes for.
var indexedFields = map[string]string{
	"geohash":       "keyword",
	"property_type": "keyword",
	"price":         "float",
}

// Client stores one point per listing in a single collection.
type Client struct {
	baseURL    string
	collection string
	httpClient *http.Client
	executor   *resilience.Executor

	mu          sync.Mutex
	readyVector int
}

func New(baseURL, collection string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		executor:   executor,
	}
}

// PointID is the deterministic qdrant point id for a listing.
func PointID(listingID string) string {
	return uuid.NewSHA1(listingNamespace, []byte(listingID)).String()
}

type listingPayload struct {
	ListingID      string   `json:"listing_id"`
	Address        string   `json:"address"`
	Price          float64  `json:"price"`
	Bedrooms       float64  `json:"bedrooms"`
	Bathrooms      float64  `json:"bathrooms"`
	SquareFootage  float64  `json:"square_footage"`
	Description    string   `json:"description"`
	NeighborhoodID string   `json:"neighborhood_id"`
	PropertyType   string   `json:"property_type"`
	YearBuilt      int      `json:"year_built"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
	Geohash        string   `json:"geohash,omitempty"`
}

func payloadFromListing(l domain.Listing) listingPayload {
	p := listingPayload{
		ListingID:      l.ID,
		Address:        l.Address,
		Price:          l.Price,
		Bedrooms:       l.Bedrooms,
		Bathrooms:      l.Bathrooms,
		SquareFootage:  l.SquareFootage,
		Description:    l.Description,
		NeighborhoodID: l.NeighborhoodID,
		PropertyType:   l.PropertyType,
		YearBuilt:      l.YearBuilt,
	}
	if l.HasLocation() {
		lat, lon := l.Latitude, l.Longitude
		p.Latitude, p.Longitude = &lat, &lon
		p.Geohash = l.GeohashCell()
	}
	return p
}

func (p listingPayload) listing() domain.Listing {
	l := domain.Listing{
		ID:             p.ListingID,
		Address:        p.Address,
		Price:          p.Price,
		Bedrooms:       p.Bedrooms,
		Bathrooms:      p.Bathrooms,
		SquareFootage:  p.SquareFootage,
		Description:    p.Description,
		NeighborhoodID: p.NeighborhoodID,
		PropertyType:   p.PropertyType,
		YearBuilt:      p.YearBuilt,
	}
	if p.Latitude != nil && p.Longitude != nil {
		l.Latitude, l.Longitude = *p.Latitude, *p.Longitude
	}
	return l
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload listingPayload `json:"payload"`
}

func (c *Client) IndexListings(ctx context.Context, listings []domain.Listing, vectors [][]float32) error {
	if len(listings) == 0 {
		return nil
	}
	if len(listings) != len(vectors) {
		return domain.WrapError(domain.ErrInternal, "qdrant upsert",
			fmt.Errorf("listings/vectors mismatch: %d != %d", len(listings), len(vectors)))
	}
	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return err
	}

	points := make([]point, 0, len(listings))
	for i, listing := range listings {
		points = append(points, point{
			ID:      PointID(listing.ID),
			Vector:  vectors[i],
			Payload: payloadFromListing(listing),
		})
	}
	return c.doJSON(ctx, http.MethodPut, c.collectionURL("/points?wait=true"), map[string]any{"points": points}, nil, "upsert")
}

type searchRequest struct {
	Vector      []float32 `json:"vector"`
	Limit       int       `json:"limit"`
	WithPayload bool      `json:"with_payload"`
	WithVector  bool      `json:"with_vector"`
}

type searchResponse struct {
	Result []struct {
		Score   float64        `json:"score"`
		Payload listingPayload `json:"payload"`
	} `json:"result"`
}

// SearchListings returns the nearest listings by cosine similarity. A missing
// collection means nothing has been indexed yet and yields no candidates.
func (c *Client) SearchListings(ctx context.Context, queryVector []float32, limit int) ([]domain.Candidate, error) {
	if len(queryVector) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}

	var resp searchResponse
	req := searchRequest{Vector: queryVector, Limit: limit, WithPayload: true}
	err := c.doJSON(ctx, http.MethodPost, c.collectionURL("/points/search"), req, &resp, "search")
	if statusErr, ok := asStatusError(err); ok && statusErr.StatusCode == http.StatusNotFound {
		slog.Warn("vector_collection_missing", "collection", c.collection)
		return []domain.Candidate{}, nil
	}
	if err != nil {
		return nil, err
	}

	out := make([]domain.Candidate, 0, len(resp.Result))
	for _, r := range resp.Result {
		if r.Payload.ListingID == "" {
			continue
		}
		out = append(out, domain.Candidate{Listing: r.Payload.listing(), Similarity: r.Score})
	}
	return out, nil
}

// ensureCollection creates the collection for vectorSize once per process,
// then adds payload indexes. An existing collection (409) is accepted as is.
func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readyVector == vectorSize {
		return nil
	}

	body := map[string]any{
		"vectors": map[string]any{"size": vectorSize, "distance": "Cosine"},
	}
	err := c.doJSON(ctx, http.MethodPut, c.collectionURL(""), body, nil, "create_collection")
	created := err == nil
	if statusErr, ok := asStatusError(err); ok && statusErr.StatusCode == http.StatusConflict {
		err = nil
	}
	if err != nil {
		return err
	}

	if created {
		for field, schema := range indexedFields {
			indexBody := map[string]any{"field_name": field, "field_schema": schema}
			if err := c.doJSON(ctx, http.MethodPut, c.collectionURL("/index?wait=true"), indexBody, nil, "create_index"); err != nil {
				slog.Warn("vector_payload_index_failed", "collection", c.collection, "field", field, "error", err)
			}
		}
	}
	c.readyVector = vectorSize
	return nil
}

func (c *Client) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", c.baseURL, c.collection, suffix)
}

func (c *Client) doJSON(ctx context.Context, method, url string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	call := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("qdrant %s request: %w", operation, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return resilience.NewHTTPStatusError("qdrant", operation, resp)
		}
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	}

	if c.executor == nil {
		err = call(ctx)
	} else {
		err = c.executor.Execute(ctx, "qdrant."+operation, call, resilience.ClassifyTransport)
	}
	return resilience.WrapUpstream("qdrant "+operation, err, resilience.ClassifyTransport)
}
