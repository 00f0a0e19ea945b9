package domain

import "fmt"

// Category scopes both storage and retrieval of support documents
type Category string

const (
	CategoryPhone     Category = "phone"
	CategoryFibre     Category = "fibre"
	CategoryBroadband Category = "broadband"
	CategoryEmail     Category = "email"
)

// Categories returns the closed set of known categories in display order
func Categories() []Category {
	return []Category{CategoryPhone, CategoryFibre, CategoryBroadband, CategoryEmail}
}

// IsValid returns true if this is a known category
func (c Category) IsValid() bool {
	switch c {
	case CategoryPhone, CategoryFibre, CategoryBroadband, CategoryEmail:
		return true
	default:
		return false
	}
}

// ParseCategory matches s against the known categories exactly.
// No case folding or fuzzy matching is applied.
func ParseCategory(s string) (Category, error) {
	c := Category(s)
	if !c.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
	}
	return c, nil
}
