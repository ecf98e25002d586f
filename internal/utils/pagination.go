// Package utils holds small helpers shared by the transport and service
// layers. Nothing here knows about projects, comments or summaries.
package utils

import "strconv"

// Page bounds shared by every paginated listing.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageRequest is a 1-based page number and a page size.
type PageRequest struct {
	Page int
	Size int
}

// ParsePage reads raw page and page_size query values. Missing or malformed
// values fall back to page 1 and DefaultPageSize; numbers are clamped to
// [1, MaxPageSize] for the size and to >= 1 for the page.
func ParsePage(page, size string) PageRequest {
	pr := PageRequest{
		Page: atoiDefault(page, 1),
		Size: atoiDefault(size, DefaultPageSize),
	}
	if pr.Page < 1 {
		pr.Page = 1
	}
	if pr.Size < 1 {
		pr.Size = 1
	}
	if pr.Size > MaxPageSize {
		pr.Size = MaxPageSize
	}
	return pr
}

// Normalize replaces a non-positive page with 1 and a non-positive size with
// DefaultPageSize. Callers that did not go through ParsePage use it.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	return p
}

// Offset is the number of rows preceding the page.
func (p PageRequest) Offset() int { return (p.Page - 1) * p.Size }

// TotalPages is ceil(total/Size); zero rows means zero pages.
func (p PageRequest) TotalPages(total int64) int {
	if p.Size <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(p.Size) - 1) / int64(p.Size))
}

// atoiDefault parses s or returns def when s is empty or not an integer.
func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
