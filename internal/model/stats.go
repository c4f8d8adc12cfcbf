package model

// CategoryCount is the number of items in one category.
type CategoryCount struct {
	Category Category `json:"category"`
	Count    int64    `json:"count"`
}

// LocationCount is the number of items found at one location.
type LocationCount struct {
	Location string `json:"location"`
	Count    int64  `json:"count"`
}

// ItemStats is the aggregate view shown on the admin dashboard.
type ItemStats struct {
	Total        int64           `json:"total"`
	Claimed      int64           `json:"claimed"`
	Unclaimed    int64           `json:"unclaimed"`
	ExpiringSoon int64           `json:"expiringSoon"`
	Categories   []CategoryCount `json:"categories"`
	TopLocations []LocationCount `json:"topLocations"`
}
