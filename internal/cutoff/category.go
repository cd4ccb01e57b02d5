package cutoff

import (
	"fmt"
	"strings"
)

// Category names a ranking column. Only values obtained from CategorySet.Parse
// are ever used to address storage.
type Category string

func (c Category) String() string {
	return string(c)
}

// DefaultCategories are the KCET reservation category columns.
var DefaultCategories = []string{
	"GM", "GMK", "GMR",
	"1G", "1K", "1R",
	"2AG", "2AK", "2AR",
	"2BG", "2BK", "2BR",
	"3AG", "3AK", "3AR",
	"3BG", "3BK", "3BR",
	"SCG", "SCK", "SCR",
	"STG", "STK", "STR",
}

// CategorySet is the allow-list of category names.
type CategorySet struct {
	order []Category
	index map[Category]struct{}
}

func NewCategorySet(names []string) CategorySet {
	set := CategorySet{index: make(map[Category]struct{}, len(names))}
	for _, name := range names {
		c := Category(strings.TrimSpace(name))
		if c == "" {
			continue
		}
		if _, dup := set.index[c]; dup {
			continue
		}
		set.index[c] = struct{}{}
		set.order = append(set.order, c)
	}
	return set
}

// Parse returns the allow-listed category matching name exactly.
func (s CategorySet) Parse(name string) (Category, error) {
	c := Category(strings.TrimSpace(name))
	if _, ok := s.index[c]; !ok || c == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidCategory, name)
	}
	return c, nil
}

func (s CategorySet) Contains(c Category) bool {
	_, ok := s.index[c]
	return ok
}

func (s CategorySet) Len() int {
	return len(s.order)
}

// List returns the category names in configured order.
func (s CategorySet) List() []string {
	out := make([]string, len(s.order))
	for i, c := range s.order {
		out[i] = string(c)
	}
	return out
}
