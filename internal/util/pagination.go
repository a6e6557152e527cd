package util

import (
	"errors"
	"math"
	"strconv"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	// MaxPage keeps (page-1)*size inside a 32-bit offset for any page size.
	MaxPage = math.MaxInt32 / MaxPageSize
)

func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err == nil || errors.Is(err, strconv.ErrRange) {
		return v
	}
	return def
}

// Normalize clamps page to [1, MaxPage] and size to (0, MaxPageSize],
// defaulting size when it is not positive.
func Normalize(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return page, size
}

func Calculate(page, size int) (offset, limit int) {
	page, size = Normalize(page, size)
	return (page - 1) * size, size
}

type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	PageSize    int   `json:"pageSize"`
	TotalItems  int64 `json:"totalItems"`
	TotalPages  int   `json:"totalPages"`
}

func NewPagination(page, size int, total int64) Pagination {
	page, size = Normalize(page, size)
	return Pagination{
		CurrentPage: page,
		PageSize:    size,
		TotalItems:  total,
		TotalPages:  int((total + int64(size) - 1) / int64(size)),
	}
}
