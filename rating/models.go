package rating

// MinRating and MaxRating bound a submitted rating.
const (
	MinRating = 1
	MaxRating = 5
)

// StoreListing is one row of the store browser. OverallRating is nil when
// the store has no ratings; SubmittedRating is nil when the caller has not
// rated it.
type StoreListing struct {
	ID              int64    `json:"id"`
	Name            string   `json:"name"`
	Address         string   `json:"address"`
	OwnerID         int64    `json:"owner_id"`
	OwnerName       string   `json:"owner_name"`
	OverallRating   *float64 `json:"overall_rating"`
	SubmittedRating *int     `json:"submitted_rating"`
}

// Store is a store row.
type Store struct {
	ID      int64
	Name    string
	Address string
	OwnerID int64
}

// Rater is one rating left on an owner's store.
type Rater struct {
	Rating  int    `json:"rating"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// OwnerDashboard summarises the ratings of an owner's store.
type OwnerDashboard struct {
	StoreID       int64    `json:"storeId"`
	StoreName     string   `json:"storeName"`
	AverageRating *float64 `json:"averageRating"`
	Ratings       []Rater  `json:"ratings"`
}

// RateRequest is the body of a rating submission.
type RateRequest struct {
	Rating *int `json:"rating"`
}
