package shared

import (
	"math"
	"net/http"
	"strconv"
)

// Pagination contains metadata for paginated listings.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination computes pagination metadata.
func NewPagination(page, perPage, total int) Pagination {
	if perPage <= 0 {
		perPage = 20
	}
	if page <= 0 {
		page = 1
	}
	totalPages := int(math.Ceil(float64(total) / float64(perPage)))
	return Pagination{Page: page, PerPage: perPage, Total: total, TotalPages: totalPages}
}

// PageFromRequest reads page/per_page query parameters with sane bounds.
func PageFromRequest(r *http.Request) (page, perPage int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page <= 0 {
		page = 1
	}
	perPage, _ = strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage <= 0 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}

// Offset converts pagination into a SQL offset.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PerPage
}
