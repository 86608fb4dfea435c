// Package admin implements the System Administrator operations: platform
// statistics, user and store listings, and account and store creation.
package admin

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"golang.org/x/sync/errgroup"

	"storerate/apperr"
	"storerate/auth"
	"storerate/rating"
)

var storeFieldMessages = map[string]string{
	"name":         "Store name is required and cannot exceed 255 characters.",
	"address":      "Address cannot exceed 400 characters.",
	"ownerEmail":   "A valid owner email is required.",
	"storeName":    "Store name cannot exceed 255 characters.",
	"storeAddress": "Store address cannot exceed 400 characters.",
}

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// UserPreparer validates and hashes new accounts. *auth.Service satisfies it.
type UserPreparer interface {
	PrepareUser(req auth.NewUserRequest) (auth.CreateUserParams, error)
}

// Service implements the admin operations.
type Service struct {
	pool     TxBeginner
	repo     Repository
	users    UserPreparer
	validate *validator.Validate
}

// NewService creates an admin service.
func NewService(pool TxBeginner, repo Repository, users UserPreparer) *Service {
	return &Service{
		pool:     pool,
		repo:     repo,
		users:    users,
		validate: auth.NewValidator(),
	}
}

// DashboardStats returns the user, store and rating totals.
func (s *Service) DashboardStats(ctx context.Context) (Stats, error) {
	var stats Stats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.TotalUsers, err = s.repo.CountUsers(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalStores, err = s.repo.CountStores(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalRatings, err = s.repo.CountRatings(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// ListStores returns every store with its owner and average rating.
func (s *Service) ListStores(ctx context.Context, search string) ([]StoreRow, error) {
	return s.repo.ListStores(ctx, rating.NormalizeSearch(search))
}

// ListUsers returns every user matching search.
func (s *Service) ListUsers(ctx context.Context, search string) ([]UserRow, error) {
	return s.repo.ListUsers(ctx, rating.NormalizeSearch(search))
}

// AddStore creates a store owned by the Store Owner with req.OwnerEmail.
func (s *Service) AddStore(ctx context.Context, req AddStoreRequest) (StoreRow, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validate.Struct(req); err != nil {
		return StoreRow{}, auth.FieldErrors(err, storeFieldMessages)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return StoreRow{}, fmt.Errorf("admin: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ownerID, err := s.repo.FindStoreOwnerID(ctx, tx, req.OwnerEmail)
	if err != nil {
		return StoreRow{}, err
	}

	id, err := s.repo.InsertStore(ctx, tx, InsertStoreParams{Name: req.Name, Address: req.Address, OwnerID: ownerID})
	if err != nil {
		return StoreRow{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return StoreRow{}, fmt.Errorf("admin: commit: %w", err)
	}

	return StoreRow{ID: id, Name: req.Name, Address: req.Address, OwnerID: ownerID}, nil
}

// AddUser creates an account with any role. When req names a store for a
// Store Owner, the account and the store are created together or not at all.
func (s *Service) AddUser(ctx context.Context, req AddUserRequest) (CreatedUser, error) {
	req.StoreName = strings.TrimSpace(req.StoreName)
	if err := validateStoreFields(req); err != nil {
		return CreatedUser{}, err
	}

	params, err := s.users.PrepareUser(auth.NewUserRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Address:  req.Address,
		Role:     req.Role,
	})
	if err != nil {
		return CreatedUser{}, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return CreatedUser{}, fmt.Errorf("admin: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	user, err := s.repo.InsertUser(ctx, tx, params)
	if err != nil {
		return CreatedUser{}, err
	}
	created := CreatedUser{User: user}

	if req.StoreName != "" {
		storeID, err := s.repo.InsertStore(ctx, tx, InsertStoreParams{
			Name:    req.StoreName,
			Address: req.StoreAddress,
			OwnerID: user.ID,
		})
		if err != nil {
			return CreatedUser{}, err
		}
		created.Store = &StoreRow{
			ID:         storeID,
			Name:       req.StoreName,
			Address:    req.StoreAddress,
			OwnerID:    user.ID,
			OwnerName:  user.Name,
			OwnerEmail: user.Email,
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return CreatedUser{}, fmt.Errorf("admin: commit: %w", err)
	}
	return created, nil
}

func validateStoreFields(req AddUserRequest) error {
	if req.StoreName == "" && req.StoreAddress == "" {
		return nil
	}

	var fields []apperr.FieldError
	if req.Role != auth.RoleStoreOwner {
		fields = append(fields, apperr.FieldError{Field: "storeName", Message: "Only Store Owner accounts can be created with a store."})
	}
	if req.StoreName == "" {
		fields = append(fields, apperr.FieldError{Field: "storeName", Message: "Store name is required when a store address is given."})
	}
	if auth.HasNUL(req.StoreName) {
		fields = append(fields, apperr.FieldError{Field: "storeName", Message: "storeName must not contain NUL characters."})
	}
	if auth.HasNUL(req.StoreAddress) {
		fields = append(fields, apperr.FieldError{Field: "storeAddress", Message: "storeAddress must not contain NUL characters."})
	}
	if utf8.RuneCountInString(req.StoreName) > 255 {
		fields = append(fields, apperr.FieldError{Field: "storeName", Message: storeFieldMessages["storeName"]})
	}
	if utf8.RuneCountInString(req.StoreAddress) > 400 {
		fields = append(fields, apperr.FieldError{Field: "storeAddress", Message: storeFieldMessages["storeAddress"]})
	}
	if len(fields) > 0 {
		return apperr.Validation(fields...)
	}
	return nil
}
