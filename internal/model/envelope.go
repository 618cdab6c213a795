package model

// Envelope is the normalized result of every successful outbound call.
// Success is true only for a 2xx transport status; Data holds the zero value
// (null when marshaled for pointer, slice, map and interface types) when the
// upstream returned no content.
type Envelope[T any] struct {
	Data    T      `json:"data"`
	Success bool   `json:"success"`
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
}

// Page is the paginated list shape returned by the site's REST API.
type Page[T any] struct {
	Items       []T `json:"items"`
	TotalCount  int `json:"totalCount"`
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
}
