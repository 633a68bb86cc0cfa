package engine

import (
	"strings"

	"leavedesk/internal/domain"
)

const DefaultPageSize = 10

// Page is one 1-based slice of a list.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
	Total      int `json:"total"`
}

// Paginate cuts items into pages of size. An empty list still has one page,
// and out-of-range pages are clamped to the nearest valid one.
func Paginate[T any](items []T, page, size int) Page[T] {
	if size < 1 {
		size = DefaultPageSize
	}
	total := len(items)
	pages := (total + size - 1) / size
	if pages < 1 {
		pages = 1
	}
	if page > pages {
		page = pages
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * size
	end := start + size
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	return Page[T]{
		Items:      items[start:end],
		Page:       page,
		PageSize:   size,
		TotalPages: pages,
		Total:      total,
	}
}

// Pager keeps the current page of a list view.
type Pager struct {
	page int
	size int
}

func NewPager(size int) *Pager {
	p := &Pager{}
	p.SetPageSize(size)
	return p
}

func (p *Pager) Page() int {
	if p.page < 1 {
		return 1
	}
	return p.page
}

func (p *Pager) PageSize() int {
	if p.size < 1 {
		return DefaultPageSize
	}
	return p.size
}

// SetPageSize changes the size and returns to the first page.
func (p *Pager) SetPageSize(size int) {
	if size < 1 {
		size = DefaultPageSize
	}
	p.size = size
	p.page = 1
}

func (p *Pager) SetPage(page int) { p.page = page }

// Resume rebuilds a pager for a stateless caller that reports the page and
// size it last saw. Asking for a different size returns to the first page.
// Sizes below 1 fall back to fallback; a missing prevSize means unchanged.
func Resume(page, size, prevSize, fallback int) *Pager {
	if size < 1 {
		size = fallback
	}
	if prevSize < 1 {
		prevSize = size
	}
	p := NewPager(prevSize)
	p.SetPage(page)
	if p.PageSize() != size {
		p.SetPageSize(size)
	}
	return p
}

// Of returns the current page of items and pins the pager to the clamped page.
func Of[T any](p *Pager, items []T) Page[T] {
	pg := Paginate(items, p.Page(), p.PageSize())
	p.page = pg.Page
	return pg
}

// Filter narrows aggregated lists before pagination. Empty fields match all.
type Filter struct {
	Query     string
	LeaveType string
	Status    string
	Role      string
}

func (f Filter) Empty() bool {
	return strings.TrimSpace(f.Query+f.LeaveType+f.Status+f.Role) == ""
}

// Match reports whether it passes every set criterion. Query is a
// case-insensitive substring over name, email, reason and leave type.
func (f Filter) Match(it Item) bool {
	if t := strings.TrimSpace(f.LeaveType); t != "" && !strings.EqualFold(t, string(it.Type)) {
		return false
	}
	if s := strings.ToUpper(strings.TrimSpace(f.Status)); s != "" && !strings.HasPrefix(string(it.Status), s) {
		return false
	}
	if r := strings.TrimSpace(f.Role); r != "" {
		role, ok := domain.ParseRole(r)
		if !ok || role != it.Role {
			return false
		}
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	for _, field := range []string{it.EmployeeName, it.EmployeeEmail, it.Reason, string(it.Type)} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

func (f Filter) Apply(items []Item) []Item {
	if f.Empty() {
		return items
	}
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if f.Match(it) {
			out = append(out, it)
		}
	}
	return out
}
