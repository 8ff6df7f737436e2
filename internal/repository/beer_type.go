package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kegstock/kegstock/internal/model"
)

// Common errors for beer type repository operations.
var (
	ErrBeerTypeNotFound   = errors.New("beer type not found")
	ErrBeerTypeNameExists = errors.New("beer type name already exists")
	ErrNegativeKegCount   = errors.New("keg count would be negative")
	ErrKegCountOutOfRange = errors.New("keg count out of range")
	// ErrKegCountUnchanged means a guarded adjustment matched no row: the id
	// does not exist or the delta would take the count below zero.
	ErrKegCountUnchanged = errors.New("keg count not adjusted")
)

const beerTypeColumns = `id, name, keg_count, created_at, updated_at`

// ListBeerTypes returns every beer type ordered by name.
func (r *Repository) ListBeerTypes(ctx context.Context) ([]*model.BeerType, error) {
	query := `SELECT ` + beerTypeColumns + ` FROM beer_types ORDER BY name ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list beer types: %w", err)
	}
	defer rows.Close()

	beerTypes := make([]*model.BeerType, 0)
	for rows.Next() {
		bt, err := scanBeerType(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan beer type: %w", err)
		}
		beerTypes = append(beerTypes, bt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating beer types: %w", err)
	}

	return beerTypes, nil
}

// GetBeerTypeByID retrieves a beer type by its ID.
func (r *Repository) GetBeerTypeByID(ctx context.Context, id int64) (*model.BeerType, error) {
	query := `SELECT ` + beerTypeColumns + ` FROM beer_types WHERE id = $1`

	bt, err := scanBeerType(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBeerTypeNotFound
		}
		return nil, fmt.Errorf("failed to get beer type by ID: %w", err)
	}

	return bt, nil
}

// CreateBeerType inserts a new beer type. Name uniqueness is enforced by the
// beer_types_name_key constraint.
func (r *Repository) CreateBeerType(ctx context.Context, name string, kegCount int) (*model.BeerType, error) {
	query := `
		INSERT INTO beer_types (name, keg_count)
		VALUES ($1, $2)
		RETURNING ` + beerTypeColumns

	bt, err := scanBeerType(r.pool.QueryRow(ctx, query, name, kegCount))
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return nil, ErrBeerTypeNameExists
		case isCheckViolation(err):
			return nil, ErrNegativeKegCount
		case isOutOfRange(err):
			return nil, ErrKegCountOutOfRange
		}
		return nil, fmt.Errorf("failed to create beer type: %w", err)
	}

	return bt, nil
}

// DeleteBeerType hard-deletes a beer type. Deleting an unknown id is not an
// error; the number of rows removed is returned.
func (r *Repository) DeleteBeerType(ctx context.Context, id int64) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM beer_types WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete beer type: %w", err)
	}

	return result.RowsAffected(), nil
}

// SetKegCount overwrites the keg count unconditionally. Callers own the
// non-negative rule; the column check still rejects negative values.
func (r *Repository) SetKegCount(ctx context.Context, id int64, count int) (*model.BeerType, error) {
	query := `
		UPDATE beer_types
		SET keg_count = $2
		WHERE id = $1
		RETURNING ` + beerTypeColumns

	bt, err := scanBeerType(r.pool.QueryRow(ctx, query, id, count))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, ErrBeerTypeNotFound
		case isCheckViolation(err):
			return nil, ErrNegativeKegCount
		case isOutOfRange(err):
			return nil, ErrKegCountOutOfRange
		}
		return nil, fmt.Errorf("failed to set keg count: %w", err)
	}

	return bt, nil
}

// AdjustKegCount adds delta (which may be negative) to the keg count in a
// single statement. The row is only updated when the result stays >= 0, so
// concurrent adjustments cannot lose writes or drive the count negative.
// Returns ErrKegCountUnchanged when no row matched.
func (r *Repository) AdjustKegCount(ctx context.Context, id int64, delta int) (*model.BeerType, error) {
	query := `
		UPDATE beer_types
		SET keg_count = keg_count + $2
		WHERE id = $1 AND keg_count + $2 >= 0
		RETURNING ` + beerTypeColumns

	bt, err := scanBeerType(r.pool.QueryRow(ctx, query, id, delta))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, ErrKegCountUnchanged
		case isOutOfRange(err):
			return nil, ErrKegCountOutOfRange
		}
		return nil, fmt.Errorf("failed to adjust keg count: %w", err)
	}

	return bt, nil
}

// scanBeerType scans a single row into a BeerType model.
func scanBeerType(row pgx.Row) (*model.BeerType, error) {
	var bt model.BeerType
	err := row.Scan(
		&bt.ID,
		&bt.Name,
		&bt.KegCount,
		&bt.CreatedAt,
		&bt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &bt, nil
}
