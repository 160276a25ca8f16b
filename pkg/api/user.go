package api

type Profile struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	UPI    string `json:"upi,omitempty"`
	Points int    `json:"points"`
}

type UpsertProfileRequest struct {
	Name string `json:"name"`
	// UPI is the virtual payment address others pay into. Empty unlinks it.
	UPI string `json:"upi,omitempty"`
}

type UpsertProfileResponse struct {
	Profile Profile `json:"profile"`
}

type GetProfileRequest struct {
	// UserID defaults to the caller.
	UserID string `json:"userId,omitempty"`
}

type GetProfileResponse struct {
	Profile Profile `json:"profile"`
}
