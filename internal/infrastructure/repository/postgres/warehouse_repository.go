package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
)

type WarehouseRepository struct {
	db *sql.DB
}

func NewWarehouseRepository(db *sql.DB) *WarehouseRepository {
	return &WarehouseRepository{db: db}
}

func (r *WarehouseRepository) ListListings(ctx context.Context, afterID string, limit int) ([]domain.Listing, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, address, price, bedrooms, bathrooms, square_footage, description,
	COALESCE(neighborhood_id, ''), property_type, year_built, latitude, longitude
FROM listings
WHERE id > $1
ORDER BY id
LIMIT $2
`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Listing, 0, limit)
	for rows.Next() {
		var l domain.Listing
		if err := rows.Scan(
			&l.ID, &l.Address, &l.Price, &l.Bedrooms, &l.Bathrooms, &l.SquareFootage, &l.Description,
			&l.NeighborhoodID, &l.PropertyType, &l.YearBuilt, &l.Latitude, &l.Longitude,
		); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return out, nil
}

const neighborhoodColumns = `id, name, COALESCE(geohash, ''), school_rating, crime_rate, amenity_density, walk_score, description`

func (r *WarehouseRepository) GetNeighborhood(ctx context.Context, neighborhoodID string) (*domain.Neighborhood, error) {
	if strings.TrimSpace(neighborhoodID) == "" {
		return nil, domain.WrapError(domain.ErrNotFound, "get neighborhood", errors.New("empty neighborhood id"))
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+neighborhoodColumns+` FROM neighborhoods WHERE id = $1`, neighborhoodID)
	return scanNeighborhood(row, "get neighborhood", neighborhoodID)
}

func (r *WarehouseRepository) FindNeighborhoodByGeohash(ctx context.Context, cell string) (*domain.Neighborhood, error) {
	if strings.TrimSpace(cell) == "" {
		return nil, domain.WrapError(domain.ErrNotFound, "find neighborhood by geohash", errors.New("empty geohash"))
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+neighborhoodColumns+`
FROM neighborhoods
WHERE geohash = $1
ORDER BY id
LIMIT 1`, cell)
	return scanNeighborhood(row, "find neighborhood by geohash", cell)
}

func scanNeighborhood(row *sql.Row, op, key string) (*domain.Neighborhood, error) {
	var n domain.Neighborhood
	var school, crime, amenity, walk sql.NullFloat64
	err := row.Scan(&n.ID, &n.Name, &n.Geohash, &school, &crime, &amenity, &walk, &n.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, op, fmt.Errorf("neighborhood %s", key))
		}
		return nil, fmt.Errorf("scan neighborhood: %w", err)
	}
	n.SchoolRating = nullFloat(school)
	n.CrimeRate = nullFloat(crime)
	n.AmenityDensity = nullFloat(amenity)
	n.WalkScore = nullFloat(walk)
	return &n, nil
}

func (r *WarehouseRepository) GetHazardProfile(ctx context.Context, listingID string) (*domain.HazardProfile, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT h.category, h.level, COALESCE(l.neighborhood_id, '')
FROM hazard_risks h
JOIN listings l ON l.id = h.listing_id
WHERE h.listing_id = $1
ORDER BY h.category
`, listingID)
	if err != nil {
		return nil, fmt.Errorf("query hazard profile: %w", err)
	}
	defer rows.Close()

	profile := &domain.HazardProfile{
		ListingID: listingID,
		Risks:     make(map[domain.HazardCategory]domain.RiskLevel),
	}
	for rows.Next() {
		var category, level string
		if err := rows.Scan(&category, &level, &profile.NeighborhoodID); err != nil {
			return nil, fmt.Errorf("scan hazard risk: %w", err)
		}
		profile.Risks[domain.HazardCategory(strings.ToLower(strings.TrimSpace(category)))] = domain.RiskLevel(level)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hazard risks: %w", err)
	}
	if len(profile.Risks) == 0 {
		return nil, domain.WrapError(domain.ErrNotFound, "get hazard profile", fmt.Errorf("listing %s", listingID))
	}
	return profile, nil
}

func (r *WarehouseRepository) GetLendingParams(ctx context.Context) (*domain.LendingParams, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT interest_rate_percent, loan_term_years, property_tax_rate_percent, insurance_annual
FROM lending_params
WHERE effective_date <= CURRENT_DATE
ORDER BY effective_date DESC
LIMIT 1
`)
	var p domain.LendingParams
	if err := row.Scan(&p.InterestRatePercent, &p.LoanTermYears, &p.PropertyTaxRatePercent, &p.InsuranceAnnual); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get lending params", err)
		}
		return nil, fmt.Errorf("scan lending params: %w", err)
	}
	return &p, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
