// Package actors drives the services concurrently against a real database.
// Every actor loops until stop closes or ctx ends and returns the first
// unexpected error.
package actors

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"storerate/admin"
	"storerate/rating"
)

func stopped(ctx context.Context, stop <-chan struct{}) (bool, error) {
	select {
	case <-ctx.Done():
		return true, ctx.Err()
	case <-stop:
		return true, nil
	default:
		return false, nil
	}
}

func pause(rng *rand.Rand, base, jitter int) {
	time.Sleep(time.Duration(base+rng.Intn(jitter)) * time.Millisecond)
}

// Rater submits random ratings for userID across storeIDs.
func Rater(ctx context.Context, svc *rating.Service, seed, userID int64, storeIDs []int64, stop <-chan struct{}) error {
	rng := rand.New(rand.NewSource(seed))
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		storeID := storeIDs[rng.Intn(len(storeIDs))]
		value := rating.MinRating + rng.Intn(rating.MaxRating-rating.MinRating+1)
		if err := svc.SubmitOrUpdateRating(ctx, userID, storeID, value); err != nil {
			return fmt.Errorf("rater %d: %w", userID, err)
		}
		pause(rng, 2, 10)
	}
}

// Contender hammers a single (user, store) pair so concurrent upserts race
// on the same primary key.
func Contender(ctx context.Context, svc *rating.Service, seed, userID, storeID int64, stop <-chan struct{}) error {
	rng := rand.New(rand.NewSource(seed))
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		value := rating.MinRating + rng.Intn(rating.MaxRating-rating.MinRating+1)
		if err := svc.SubmitOrUpdateRating(ctx, userID, storeID, value); err != nil {
			return fmt.Errorf("contender %d/%d: %w", userID, storeID, err)
		}
	}
}

// InvalidRater submits out-of-range ratings, which must be rejected before
// any write.
func InvalidRater(ctx context.Context, svc *rating.Service, seed, userID, storeID int64, stop <-chan struct{}) error {
	rng := rand.New(rand.NewSource(seed))
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		value := rating.MaxRating + 1 + rng.Intn(5)
		if rng.Intn(2) == 0 {
			value = rating.MinRating - 1 - rng.Intn(5)
		}
		if err := svc.SubmitOrUpdateRating(ctx, userID, storeID, value); err == nil {
			return fmt.Errorf("invalid rater: rating %d accepted", value)
		}
		pause(rng, 5, 20)
	}
}

// StoreCreator keeps trying to give owners a second store. Every attempt
// must fail with admin.ErrOwnerHasStore.
func StoreCreator(ctx context.Context, svc *admin.Service, seed int64, ownerEmails []string, stop <-chan struct{}) error {
	rng := rand.New(rand.NewSource(seed))
	for i := 0; ; i++ {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		email := ownerEmails[rng.Intn(len(ownerEmails))]
		_, err := svc.AddStore(ctx, admin.AddStoreRequest{
			Name:       fmt.Sprintf("Second Store %d", i),
			Address:    "Nowhere",
			OwnerEmail: email,
		})
		if err == nil {
			return fmt.Errorf("store creator: %s got a second store", email)
		}
		if !errors.Is(err, admin.ErrOwnerHasStore) {
			return fmt.Errorf("store creator: %w", err)
		}
		pause(rng, 20, 40)
	}
}

// Reader exercises the aggregation queries while ratings change underneath.
func Reader(ctx context.Context, ratings *rating.Service, admins *admin.Service, seed, userID int64, stop <-chan struct{}) error {
	rng := rand.New(rand.NewSource(seed))
	searches := []string{"", "store", "street", "%", "_"}
	for {
		if done, err := stopped(ctx, stop); done {
			return err
		}
		search := searches[rng.Intn(len(searches))]

		stores, err := ratings.ListStores(ctx, userID, search)
		if err != nil {
			return fmt.Errorf("reader list stores: %w", err)
		}
		for _, s := range stores {
			if s.OverallRating != nil && (*s.OverallRating < rating.MinRating || *s.OverallRating > rating.MaxRating) {
				return fmt.Errorf("reader: store %d average %.1f out of range", s.ID, *s.OverallRating)
			}
		}

		if _, err := admins.DashboardStats(ctx); err != nil {
			return fmt.Errorf("reader stats: %w", err)
		}
		if _, err := admins.ListUsers(ctx, search); err != nil {
			return fmt.Errorf("reader list users: %w", err)
		}
		pause(rng, 10, 30)
	}
}
