package rating

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"storerate/apperr"
)

var (
	// ErrStoreNotFound signals that the store does not exist.
	ErrStoreNotFound = apperr.New(apperr.KindNotFound, "Store not found")
	// ErrOwnerStoreNotFound signals an owner without a store.
	ErrOwnerStoreNotFound = apperr.New(apperr.KindNotFound, "Store not found for this user")
)

// Repository handles data access for stores and ratings.
type Repository interface {
	ListStores(ctx context.Context, userID int64, search string) ([]StoreListing, error)
	UpsertRating(ctx context.Context, userID, storeID int64, rating int) error
	StoreAverage(ctx context.Context, storeID int64) (*float64, error)
	StoreByOwner(ctx context.Context, ownerID int64) (Store, error)
	RatersForStore(ctx context.Context, storeID int64) ([]Rater, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed rating repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// ListStores returns every store with its rounded average and the rating
// userID submitted, filtered on name or address when search is set.
func (r *PGRepository) ListStores(ctx context.Context, userID int64, search string) ([]StoreListing, error) {
	const selectSQL = `
		SELECT s.id, s.name, s.address, s.owner_id, o.name,
		       ROUND(AVG(rt.rating), 1)::float8,
		       mine.rating::int
		FROM stores s
		JOIN users o ON o.id = s.owner_id
		LEFT JOIN ratings rt ON rt.store_id = s.id
		LEFT JOIN ratings mine ON mine.store_id = s.id AND mine.user_id = $1
		WHERE $2 = '' OR s.name ILIKE $3 ESCAPE '\' OR s.address ILIKE $3 ESCAPE '\'
		GROUP BY s.id, o.name, mine.rating
		ORDER BY s.name, s.id
	`

	rows, err := r.pool.Query(ctx, selectSQL, userID, search, ContainsPattern(search))
	if err != nil {
		return nil, fmt.Errorf("rating: list stores: %w", err)
	}
	defer rows.Close()

	stores := []StoreListing{}
	for rows.Next() {
		var s StoreListing
		if err := rows.Scan(&s.ID, &s.Name, &s.Address, &s.OwnerID, &s.OwnerName, &s.OverallRating, &s.SubmittedRating); err != nil {
			return nil, fmt.Errorf("rating: scan store: %w", err)
		}
		stores = append(stores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rating: list stores: %w", err)
	}
	return stores, nil
}

// UpsertRating stores the rating for (userID, storeID), overwriting any
// previous value.
func (r *PGRepository) UpsertRating(ctx context.Context, userID, storeID int64, rating int) error {
	const upsertSQL = `
		INSERT INTO ratings (user_id, store_id, rating)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, store_id)
		DO UPDATE SET rating = EXCLUDED.rating, updated_at = now()
	`

	if _, err := r.pool.Exec(ctx, upsertSQL, userID, storeID, rating); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" && pgErr.ConstraintName == "ratings_store_id_fkey" {
			return ErrStoreNotFound
		}
		return fmt.Errorf("rating: upsert: %w", err)
	}
	return nil
}

// StoreAverage returns the rounded average for storeID, or nil when it has
// no ratings.
func (r *PGRepository) StoreAverage(ctx context.Context, storeID int64) (*float64, error) {
	const selectSQL = `
		SELECT ROUND(AVG(rt.rating), 1)::float8
		FROM stores s
		LEFT JOIN ratings rt ON rt.store_id = s.id
		WHERE s.id = $1
		GROUP BY s.id
	`

	var avg *float64
	if err := r.pool.QueryRow(ctx, selectSQL, storeID).Scan(&avg); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStoreNotFound
		}
		return nil, fmt.Errorf("rating: store average: %w", err)
	}
	return avg, nil
}

// StoreByOwner returns the store owned by ownerID.
func (r *PGRepository) StoreByOwner(ctx context.Context, ownerID int64) (Store, error) {
	var s Store
	err := r.pool.QueryRow(ctx, `SELECT id, name, address, owner_id FROM stores WHERE owner_id = $1`, ownerID).
		Scan(&s.ID, &s.Name, &s.Address, &s.OwnerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Store{}, ErrOwnerStoreNotFound
		}
		return Store{}, fmt.Errorf("rating: store by owner: %w", err)
	}
	return s, nil
}

// RatersForStore lists every rating left on storeID with the rater's details.
func (r *PGRepository) RatersForStore(ctx context.Context, storeID int64) ([]Rater, error) {
	const selectSQL = `
		SELECT rt.rating, u.name, u.email, u.address
		FROM ratings rt
		JOIN users u ON u.id = rt.user_id
		WHERE rt.store_id = $1
	`

	rows, err := r.pool.Query(ctx, selectSQL, storeID)
	if err != nil {
		return nil, fmt.Errorf("rating: raters: %w", err)
	}
	defer rows.Close()

	raters := []Rater{}
	for rows.Next() {
		var rt Rater
		if err := rows.Scan(&rt.Rating, &rt.Name, &rt.Email, &rt.Address); err != nil {
			return nil, fmt.Errorf("rating: scan rater: %w", err)
		}
		raters = append(raters, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rating: raters: %w", err)
	}
	return raters, nil
}

// NormalizeSearch trims term and drops the bytes PostgreSQL cannot accept
// in text parameters: NUL and invalid UTF-8 sequences.
func NormalizeSearch(term string) string {
	term = strings.ToValidUTF8(term, "")
	return strings.TrimSpace(strings.ReplaceAll(term, "\x00", ""))
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern turns a search term into an ILIKE substring pattern with
// the LIKE wildcards in term matched literally.
func ContainsPattern(term string) string {
	return "%" + likeEscaper.Replace(term) + "%"
}
