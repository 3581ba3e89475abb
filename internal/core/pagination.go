package core

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// PageRequest is a 1-based offset pagination request.
type PageRequest struct {
	Page  int
	Limit int
}

// Normalize replaces out-of-range values with the defaults.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Limit < 1 {
		p.Limit = DefaultLimit
	}
	return p
}

func (p PageRequest) Offset() int {
	p = p.Normalize()
	return (p.Page - 1) * p.Limit
}

// Page is one page of items plus the totals needed to render a pager.
type Page[T any] struct {
	Page       int
	Limit      int
	TotalPages int
	TotalItems int64
	Items      []T
}

// NewPage builds a page; TotalPages is ceil(total/limit).
func NewPage[T any](req PageRequest, total int64, items []T) Page[T] {
	req = req.Normalize()
	pages := int((total + int64(req.Limit) - 1) / int64(req.Limit))
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Page:       req.Page,
		Limit:      req.Limit,
		TotalPages: pages,
		TotalItems: total,
		Items:      items,
	}
}
