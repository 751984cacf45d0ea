// Package taxonomy holds the fixed two-level category tree used to classify expenses.
package taxonomy

import (
	"errors"
	"fmt"
	"strings"
)

// OtherCategory is the catch-all category for notes nothing matched.
const OtherCategory = "other"

// Taxonomy validation errors.
var (
	ErrDuplicateKey   = errors.New("duplicate taxonomy key")
	ErrUnknownParent  = errors.New("subcategory references unknown category")
	ErrMissingKeyword = errors.New("subcategory has no keywords")
)

// Category is a top-level expense category.
type Category struct {
	Key   string
	Label string
}

// Subcategory is a leaf of the taxonomy. Keywords are matched against
// normalized notes, so they are stored lower-case.
type Subcategory struct {
	Key      string
	Label    string
	Category string
	Keywords []string
}

// Taxonomy is an immutable, ordered set of categories and subcategories.
// Declaration order of subcategories breaks scoring ties.
type Taxonomy struct {
	categoryIndex    map[string]int
	subcategoryIndex map[string]int
	aliases          map[string]string
	categories       []Category
	subcategories    []Subcategory
}

// New builds a taxonomy, checking that keys are unique and every
// subcategory points to a declared category.
func New(categories []Category, subcategories []Subcategory, aliases map[string]string) (*Taxonomy, error) {
	t := &Taxonomy{
		categories:       append([]Category(nil), categories...),
		subcategories:    make([]Subcategory, 0, len(subcategories)),
		categoryIndex:    make(map[string]int, len(categories)),
		subcategoryIndex: make(map[string]int, len(subcategories)),
		aliases:          make(map[string]string, len(aliases)+len(categories)),
	}

	for i, c := range t.categories {
		if _, ok := t.categoryIndex[c.Key]; ok {
			return nil, fmt.Errorf("%w: category %q", ErrDuplicateKey, c.Key)
		}
		t.categoryIndex[c.Key] = i
		t.aliases[c.Key] = c.Key
	}

	for _, s := range subcategories {
		if _, ok := t.subcategoryIndex[s.Key]; ok {
			return nil, fmt.Errorf("%w: subcategory %q", ErrDuplicateKey, s.Key)
		}
		if _, ok := t.categoryIndex[s.Category]; !ok {
			return nil, fmt.Errorf("%w: %s -> %s", ErrUnknownParent, s.Key, s.Category)
		}
		if len(s.Keywords) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingKeyword, s.Key)
		}
		keywords := make([]string, len(s.Keywords))
		for i, kw := range s.Keywords {
			keywords[i] = strings.ToLower(strings.TrimSpace(kw))
		}
		s.Keywords = keywords
		t.subcategoryIndex[s.Key] = len(t.subcategories)
		t.subcategories = append(t.subcategories, s)
	}

	for alias, key := range aliases {
		if _, ok := t.categoryIndex[key]; !ok {
			return nil, fmt.Errorf("%w: alias %q -> %s", ErrUnknownParent, alias, key)
		}
		t.aliases[strings.ToLower(alias)] = key
	}

	return t, nil
}

// Categories returns the base categories in declaration order.
func (t *Taxonomy) Categories() []Category {
	return append([]Category(nil), t.categories...)
}

// Subcategories returns the subcategories in declaration order.
func (t *Taxonomy) Subcategories() []Subcategory {
	return append([]Subcategory(nil), t.subcategories...)
}

// Category looks up a base category by key.
func (t *Taxonomy) Category(key string) (Category, bool) {
	i, ok := t.categoryIndex[key]
	if !ok {
		return Category{}, false
	}
	return t.categories[i], true
}

// Subcategory looks up a subcategory by key.
func (t *Taxonomy) Subcategory(key string) (Subcategory, bool) {
	i, ok := t.subcategoryIndex[key]
	if !ok {
		return Subcategory{}, false
	}
	return t.subcategories[i], true
}

// IsCategory reports whether key names a base category.
func (t *Taxonomy) IsCategory(key string) bool {
	_, ok := t.categoryIndex[key]
	return ok
}

// ParentOf returns the base category of a subcategory, or "" if unknown.
func (t *Taxonomy) ParentOf(subcategory string) string {
	s, ok := t.Subcategory(subcategory)
	if !ok {
		return ""
	}
	return s.Category
}

// CategoryLabel returns the display label for a category key.
// Unknown keys are returned unchanged.
func (t *Taxonomy) CategoryLabel(key string) string {
	if c, ok := t.Category(key); ok {
		return c.Label
	}
	return key
}

// SubcategoryLabel returns the display label for a subcategory key, or ""
// for an empty key.
func (t *Taxonomy) SubcategoryLabel(key string) string {
	if key == "" {
		return ""
	}
	if s, ok := t.Subcategory(key); ok {
		return s.Label
	}
	return key
}

// ParseCategory maps a user token such as "еда" or "Food" to a base
// category key.
func (t *Taxonomy) ParseCategory(token string) (string, bool) {
	key, ok := t.aliases[strings.ToLower(strings.TrimSpace(token))]
	return key, ok
}
