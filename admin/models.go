package admin

import "storerate/auth"

// Stats are the platform totals shown on the admin dashboard.
type Stats struct {
	TotalUsers   int64 `json:"totalUsers"`
	TotalStores  int64 `json:"totalStores"`
	TotalRatings int64 `json:"totalRatings"`
}

// StoreRow is one row of the admin store listing.
type StoreRow struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	Address       string   `json:"address"`
	OwnerID       int64    `json:"owner_id"`
	OwnerName     string   `json:"owner_name"`
	OwnerEmail    string   `json:"owner_email"`
	OverallRating *float64 `json:"overall_rating"`
}

// UserRow is one row of the admin user listing. Ratings holds the average
// of the store a Store Owner owns and is nil for everyone else.
type UserRow struct {
	ID      int64     `json:"id"`
	Name    string    `json:"name"`
	Email   string    `json:"email"`
	Address string    `json:"address"`
	Role    auth.Role `json:"role"`
	Ratings *float64  `json:"ratings"`
}

// AddStoreRequest is the input for creating a store.
type AddStoreRequest struct {
	Name       string `json:"name" validate:"required,max=255,nonul"`
	Address    string `json:"address" validate:"max=400,nonul"`
	OwnerEmail string `json:"ownerEmail" validate:"required,max=255,email,nonul"`
}

// AddUserRequest is the input for creating an account of any role. StoreName
// and StoreAddress create the owner's store in the same transaction.
type AddUserRequest struct {
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Password     string    `json:"password"`
	Address      string    `json:"address"`
	Role         auth.Role `json:"role"`
	StoreName    string    `json:"storeName"`
	StoreAddress string    `json:"storeAddress"`
}

// CreatedUser is the result of AddUser. Store is set when a store was
// created alongside the owner.
type CreatedUser struct {
	User  auth.User
	Store *StoreRow
}
