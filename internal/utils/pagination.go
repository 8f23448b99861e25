package utils

import "fmt"

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Pagination is the paging block returned alongside list results.
type Pagination struct {
	Total       int `json:"total"`
	Pages       int `json:"pages"`
	CurrentPage int `json:"currentPage"`
	Limit       int `json:"limit"`
}

// TotalPages rounds up; zero items means zero pages.
func TotalPages(total, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

func NewPagination(total, page, limit int) Pagination {
	return Pagination{
		Total:       total,
		Pages:       TotalPages(total, limit),
		CurrentPage: page,
		Limit:       limit,
	}
}

// ValidatePage checks a 1-based page number and a page size in 1..MaxLimit.
func ValidatePage(page, limit int) error {
	if page < 1 {
		return fmt.Errorf("page must be at least 1, got %d", page)
	}
	if limit < 1 || limit > MaxLimit {
		return fmt.Errorf("limit must be between 1 and %d, got %d", MaxLimit, limit)
	}
	return nil
}
