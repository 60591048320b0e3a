package utils

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// Page is a normalised 1-based page request.
type Page struct {
	Number int
	Size   int
}

// PageMeta is returned alongside admin listings.
type PageMeta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalCount int64 `json:"totalCount"`
	TotalPages int   `json:"totalPages"`
}

// NewPage clamps page to >= 1 and size to (0, MaxPageSize], defaulting to DefaultPageSize.
func NewPage(number, size int) Page {
	if number < 1 {
		number = 1
	}
	switch {
	case size <= 0:
		size = DefaultPageSize
	case size > MaxPageSize:
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// Meta describes this page within total rows.
func (p Page) Meta(total int64) PageMeta {
	pages := 0
	if total > 0 {
		pages = int((total + int64(p.Size) - 1) / int64(p.Size))
	}
	return PageMeta{Page: p.Number, Limit: p.Size, TotalCount: total, TotalPages: pages}
}
