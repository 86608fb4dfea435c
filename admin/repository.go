package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"storerate/apperr"
	"storerate/auth"
	"storerate/rating"
)

var (
	// ErrOwnerNotFound signals that no Store Owner has the given email.
	ErrOwnerNotFound = apperr.New(apperr.KindNotFound, "Owner with specified email and role not found")
	// ErrOwnerHasStore signals that the owner already owns a store.
	ErrOwnerHasStore = apperr.New(apperr.KindConflict, "Owner already has a store")
)

// Repository handles data access for administration. Methods taking an
// auth.Querier run inside the caller's transaction.
type Repository interface {
	CountUsers(ctx context.Context) (int64, error)
	CountStores(ctx context.Context) (int64, error)
	CountRatings(ctx context.Context) (int64, error)
	ListStores(ctx context.Context, search string) ([]StoreRow, error)
	ListUsers(ctx context.Context, search string) ([]UserRow, error)
	InsertUser(ctx context.Context, q auth.Querier, params auth.CreateUserParams) (auth.User, error)
	FindStoreOwnerID(ctx context.Context, q auth.Querier, email string) (int64, error)
	InsertStore(ctx context.Context, q auth.Querier, params InsertStoreParams) (int64, error)
}

// InsertStoreParams contains write parameters for creating stores.
type InsertStoreParams struct {
	Name    string
	Address string
	OwnerID int64
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed admin repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) CountUsers(ctx context.Context) (int64, error) {
	return r.count(ctx, "users")
}

func (r *PGRepository) CountStores(ctx context.Context) (int64, error) {
	return r.count(ctx, "stores")
}

func (r *PGRepository) CountRatings(ctx context.Context) (int64, error) {
	return r.count(ctx, "ratings")
}

// count is only called with the fixed table names above.
func (r *PGRepository) count(ctx context.Context, table string) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("admin: count %s: %w", table, err)
	}
	return n, nil
}

// ListStores returns every store with its owner and rounded average.
func (r *PGRepository) ListStores(ctx context.Context, search string) ([]StoreRow, error) {
	const selectSQL = `
		SELECT s.id, s.name, s.address, s.owner_id, u.name, u.email,
		       ROUND(AVG(rt.rating), 1)::float8
		FROM stores s
		JOIN users u ON u.id = s.owner_id
		LEFT JOIN ratings rt ON rt.store_id = s.id
		WHERE $1 = ''
		   OR s.name ILIKE $2 ESCAPE '\'
		   OR s.address ILIKE $2 ESCAPE '\'
		   OR u.name ILIKE $2 ESCAPE '\'
		GROUP BY s.id, u.name, u.email
		ORDER BY s.name, s.id
	`

	rows, err := r.pool.Query(ctx, selectSQL, search, rating.ContainsPattern(search))
	if err != nil {
		return nil, fmt.Errorf("admin: list stores: %w", err)
	}
	defer rows.Close()

	stores := []StoreRow{}
	for rows.Next() {
		var s StoreRow
		if err := rows.Scan(&s.ID, &s.Name, &s.Address, &s.OwnerID, &s.OwnerName, &s.OwnerEmail, &s.OverallRating); err != nil {
			return nil, fmt.Errorf("admin: scan store: %w", err)
		}
		stores = append(stores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("admin: list stores: %w", err)
	}
	return stores, nil
}

// ListUsers returns one row per user. search matches name, email, address or
// role name.
func (r *PGRepository) ListUsers(ctx context.Context, search string) ([]UserRow, error) {
	const selectSQL = `
		SELECT u.id, u.name, u.email, u.address, ro.role_name,
		       ROUND(AVG(rt.rating), 1)::float8
		FROM users u
		JOIN roles ro ON ro.id = u.role_id
		LEFT JOIN stores s ON s.owner_id = u.id
		LEFT JOIN ratings rt ON rt.store_id = s.id
		WHERE $1 = ''
		   OR u.name ILIKE $2 ESCAPE '\'
		   OR u.email ILIKE $2 ESCAPE '\'
		   OR u.address ILIKE $2 ESCAPE '\'
		   OR ro.role_name ILIKE $2 ESCAPE '\'
		GROUP BY u.id, ro.role_name
		ORDER BY u.name, u.id
	`

	rows, err := r.pool.Query(ctx, selectSQL, search, rating.ContainsPattern(search))
	if err != nil {
		return nil, fmt.Errorf("admin: list users: %w", err)
	}
	defer rows.Close()

	users := []UserRow{}
	for rows.Next() {
		var u UserRow
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Address, &u.Role, &u.Ratings); err != nil {
			return nil, fmt.Errorf("admin: scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("admin: list users: %w", err)
	}
	return users, nil
}

// InsertUser creates an account through the shared auth insertion path.
func (r *PGRepository) InsertUser(ctx context.Context, q auth.Querier, params auth.CreateUserParams) (auth.User, error) {
	return auth.InsertUser(ctx, q, params)
}

// FindStoreOwnerID resolves email to a user holding the Store Owner role.
func (r *PGRepository) FindStoreOwnerID(ctx context.Context, q auth.Querier, email string) (int64, error) {
	const selectSQL = `
		SELECT u.id
		FROM users u
		JOIN roles ro ON ro.id = u.role_id
		WHERE lower(u.email) = lower($1) AND ro.role_name = $2
	`

	var id int64
	if err := q.QueryRow(ctx, selectSQL, email, string(auth.RoleStoreOwner)).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrOwnerNotFound
		}
		return 0, fmt.Errorf("admin: find owner: %w", err)
	}
	return id, nil
}

// InsertStore creates a store. A second store for the same owner maps to
// ErrOwnerHasStore.
func (r *PGRepository) InsertStore(ctx context.Context, q auth.Querier, params InsertStoreParams) (int64, error) {
	var id int64
	err := q.QueryRow(ctx,
		`INSERT INTO stores (name, address, owner_id) VALUES ($1, $2, $3) RETURNING id`,
		params.Name, params.Address, params.OwnerID,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "stores_owner_id_key" {
			return 0, ErrOwnerHasStore
		}
		return 0, fmt.Errorf("admin: insert store: %w", err)
	}
	return id, nil
}
