// Package pagination parses page/size/sort query parameters and builds
// the page envelope returned by every listing endpoint.
package pagination

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultSize = 20
	MaxSize     = 100
)

type Sort struct {
	Field string
	Desc  bool
}

// Request is a validated page request. Offsets are zero-based.
type Request struct {
	Page int
	Size int
	Sort Sort
}

func (r Request) Offset() int {
	return r.Page * r.Size
}

// Error reports a rejected query parameter.
type Error struct {
	Param   string
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Param, e.Message)
}

// Parse reads page, size and sort from the query. Sort fields are
// whitelisted per endpoint; anything outside the whitelist is a client
// error, not a silent fallback. Sizes above MaxSize are capped.
func Parse(query url.Values, sortable []string, defaultSort Sort) (Request, error) {
	req := Request{Size: DefaultSize, Sort: defaultSort}

	if raw := query.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 0 {
			return Request{}, Error{Param: "page", Message: "Page index must be a non-negative integer"}
		}
		req.Page = page
	}

	if raw := query.Get("size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 {
			return Request{}, Error{Param: "size", Message: "Page size must be a positive integer"}
		}
		if size > MaxSize {
			size = MaxSize
		}
		req.Size = size
	}

	if raw := query.Get("sort"); raw != "" {
		sort, err := parseSort(raw, sortable)
		if err != nil {
			return Request{}, err
		}
		req.Sort = sort
	}

	return req, nil
}

func parseSort(raw string, sortable []string) (Sort, error) {
	field, direction, hasDirection := strings.Cut(raw, ",")
	field = strings.TrimSpace(field)

	allowed := false
	for _, s := range sortable {
		if s == field {
			allowed = true
			break
		}
	}
	if !allowed {
		return Sort{}, Error{
			Param:   "sort",
			Message: "Sort field must be one of: " + strings.Join(sortable, ", "),
		}
	}

	sort := Sort{Field: field}
	if hasDirection {
		switch strings.ToLower(strings.TrimSpace(direction)) {
		case "asc":
		case "desc":
			sort.Desc = true
		default:
			return Sort{}, Error{Param: "sort", Message: "Sort direction must be asc or desc"}
		}
	}
	return sort, nil
}

// Page is the listing envelope. Counts mirror the underlying query,
// not the returned slice, so clients can walk pages reliably.
type Page[T any] struct {
	Content       []T   `json:"content"`
	PageNumber    int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	First         bool  `json:"first"`
	Last          bool  `json:"last"`
}

func NewPage[T any](content []T, req Request, total int64) Page[T] {
	if content == nil {
		content = []T{}
	}
	totalPages := 0
	if req.Size > 0 {
		totalPages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}
	return Page[T]{
		Content:       content,
		PageNumber:    req.Page,
		Size:          req.Size,
		TotalElements: total,
		TotalPages:    totalPages,
		First:         req.Page == 0,
		Last:          req.Page+1 >= totalPages,
	}
}
