package societyadmin

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
)

const MaxPerPage = 100

// Query is the filter, sort and pagination state of a table, carried in the URL.
type Query struct {
	Search  string `json:"search,omitempty"`
	Status  string `json:"status,omitempty"`
	Sort    string `json:"sort,omitempty"`
	Desc    bool   `json:"desc"`
	Page    int    `json:"page"`
	PerPage int    `json:"perPage"`
}

func ParseQuery(values url.Values, defaultPerPage int) Query {
	q := Query{
		Search:  strings.TrimSpace(values.Get("q")),
		Status:  NormalizeStatus(values.Get("status")),
		Sort:    strings.TrimSpace(values.Get("sort")),
		Desc:    !strings.EqualFold(values.Get("order"), "asc"),
		Page:    1,
		PerPage: defaultPerPage,
	}

	if page, err := strconv.Atoi(values.Get("page")); err == nil && page > 0 {
		q.Page = page
	}
	if perPage, err := strconv.Atoi(values.Get("per_page")); err == nil {
		q.PerPage = perPage
	}
	if q.PerPage < 1 {
		q.PerPage = 1
	}
	if q.PerPage > MaxPerPage {
		q.PerPage = MaxPerPage
	}

	return q
}

func (q Query) Values() url.Values {
	v := url.Values{}
	if q.Search != "" {
		v.Set("q", q.Search)
	}
	if q.Status != "" {
		v.Set("status", q.Status)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	if !q.Desc {
		v.Set("order", "asc")
	}
	if q.PerPage > 0 {
		v.Set("per_page", strconv.Itoa(q.PerPage))
	}
	if q.Page > 1 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	return v
}

// PageLink is the query string for the same table on another page.
func (q Query) PageLink(page int) string {
	q.Page = page
	return "?" + q.Values().Encode()
}

// SortLink toggles the order when key is already the sort column.
func (q Query) SortLink(key string) string {
	if q.Sort == key {
		q.Desc = !q.Desc
	} else {
		q.Sort = key
		q.Desc = true
	}
	q.Page = 1
	return "?" + q.Values().Encode()
}

type Page[T any] struct {
	Items      []T   `json:"items"`
	Query      Query `json:"query"`
	Page       int   `json:"page"`
	PerPage    int   `json:"perPage"`
	Total      int   `json:"total"`
	TotalPages int   `json:"totalPages"`
	From       int   `json:"from"`
	To         int   `json:"to"`
	HasPrev    bool  `json:"hasPrev"`
	HasNext    bool  `json:"hasNext"`
}

func (p Page[T]) PrevLink() string {
	return p.Query.PageLink(p.Page - 1)
}

func (p Page[T]) NextLink() string {
	return p.Query.PageLink(p.Page + 1)
}

// Paginate slices items for the requested page. The page is clamped into range so a stale
// link after filtering still shows the last page.
func Paginate[T any](items []T, page, perPage int) Page[T] {
	if perPage < 1 {
		perPage = 1
	}

	total := len(items)
	totalPages := (total + perPage - 1) / perPage
	if totalPages == 0 {
		totalPages = 1
	}

	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * perPage
	end := start + perPage
	if end > total {
		end = total
	}

	p := Page[T]{
		Items:      items[start:end],
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
		HasPrev:    page > 1,
		HasNext:    page < totalPages,
	}
	if total > 0 {
		p.From = start + 1
		p.To = end
	}
	if p.Items == nil {
		p.Items = []T{}
	}

	return p
}

func Filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// Comparators maps a sort key to a three way comparison.
type Comparators[T any] map[string]func(a, b T) int

// SortItems sorts a copy of items by q.Sort, falling back to defaultKey for unknown keys.
func SortItems[T any](items []T, q Query, comparators Comparators[T], defaultKey string) []T {
	cmp, ok := comparators[q.Sort]
	if !ok {
		cmp = comparators[defaultKey]
	}

	out := slices.Clone(items)
	if cmp == nil {
		return out
	}

	slices.SortStableFunc(out, func(a, b T) int {
		if q.Desc {
			return cmp(b, a)
		}
		return cmp(a, b)
	})

	return out
}

// ListPage runs the usual pipeline: status filter, search, sort, paginate.
func ListPage[T any](items []T, q Query, status func(T) string, text func(T) []string, comparators Comparators[T], defaultKey string) Page[T] {
	filtered := Filter(items, func(item T) bool {
		if q.Status != "" && NormalizeStatus(status(item)) != q.Status {
			return false
		}
		return MatchesSearch(q.Search, text(item)...)
	})

	page := Paginate(SortItems(filtered, q, comparators, defaultKey), q.Page, q.PerPage)
	page.Query = q
	page.Query.Page = page.Page

	return page
}

// MatchesSearch is a case insensitive substring match over any of the fields.
func MatchesSearch(search string, fields ...string) bool {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return true
	}

	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), search) {
			return true
		}
	}
	return false
}
