// Package rating lets normal users browse and rate stores and gives store
// owners a view of the ratings their store received.
package rating

import (
	"context"
	"fmt"

	"storerate/apperr"
)

var errRatingRange = apperr.Validation(apperr.FieldError{
	Field:   "rating",
	Message: fmt.Sprintf("Rating must be an integer between %d and %d.", MinRating, MaxRating),
})

// Service implements the store rating operations.
type Service struct {
	repo Repository
}

// NewService creates a rating service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListStores returns the store browser for userID.
func (s *Service) ListStores(ctx context.Context, userID int64, search string) ([]StoreListing, error) {
	return s.repo.ListStores(ctx, userID, NormalizeSearch(search))
}

// SubmitOrUpdateRating records userID's rating of storeID. Resubmitting
// overwrites the previous value.
func (s *Service) SubmitOrUpdateRating(ctx context.Context, userID, storeID int64, rating int) error {
	if err := ValidateRating(rating); err != nil {
		return err
	}
	if storeID <= 0 {
		return ErrStoreNotFound
	}
	return s.repo.UpsertRating(ctx, userID, storeID, rating)
}

// ComputeStoreAverage returns the average rating of storeID rounded to one
// decimal place, or nil when the store has not been rated.
func (s *Service) ComputeStoreAverage(ctx context.Context, storeID int64) (*float64, error) {
	return s.repo.StoreAverage(ctx, storeID)
}

// OwnerDashboard returns the average and raters of the store owned by ownerID.
func (s *Service) OwnerDashboard(ctx context.Context, ownerID int64) (OwnerDashboard, error) {
	store, err := s.repo.StoreByOwner(ctx, ownerID)
	if err != nil {
		return OwnerDashboard{}, err
	}

	avg, err := s.repo.StoreAverage(ctx, store.ID)
	if err != nil {
		return OwnerDashboard{}, err
	}

	raters, err := s.repo.RatersForStore(ctx, store.ID)
	if err != nil {
		return OwnerDashboard{}, err
	}

	return OwnerDashboard{
		StoreID:       store.ID,
		StoreName:     store.Name,
		AverageRating: avg,
		Ratings:       raters,
	}, nil
}

// ValidateRating rejects ratings outside MinRating..MaxRating.
func ValidateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return errRatingRange
	}
	return nil
}
