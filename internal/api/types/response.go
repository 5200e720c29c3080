// internal/api/types/response.go
package types

// PaginatedResponse defines a generic structure for paginated API responses.
// A Limit of zero means the page holds everything from Offset on.
type PaginatedResponse[T any] struct {
	Data   []T `json:"data"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
