// Package catalog holds the static table of scoreable activity categories.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrUnknownCategory indicates a lookup for a category key the catalog does not define.
var ErrUnknownCategory = errors.New("unknown activity category")

// Key identifies an activity category.
type Key string

// Category keys shipped with the default catalog.
const (
	PaperPresentation   Key = "paperPresentation"
	ProjectPresentation Key = "projectPresentation"
	TechnoManagerial    Key = "technoManagerial"
	SportsGames         Key = "sportsGames"
	Membership          Key = "membership"
	Leadership          Key = "leadership"
	VACOnline           Key = "vacOnline"
	ProjectPaper        Key = "projectPaper"
	GateExams           Key = "gateExams"
	Internship          Key = "internship"
	Entrepreneurship    Key = "entrepreneurship"
	Miscellaneous       Key = "miscellaneous"
)

// Criterion is a named sub-option of a category carrying a fixed point weight.
type Criterion struct {
	Key    string `json:"key" yaml:"key"`
	Label  string `json:"label" yaml:"label"`
	Points int    `json:"points" yaml:"points"`
}

// Category describes one scoreable activity type.
type Category struct {
	Key                Key         `json:"key" yaml:"key"`
	Title              string      `json:"title" yaml:"title"`
	Criteria           []Criterion `json:"criteria" yaml:"criteria"`
	MaxPoints          int         `json:"maxPoints" yaml:"maxPoints"`
	RequiresAttachment bool        `json:"requiresAttachment" yaml:"requiresAttachment"`
}

// Criterion returns the criterion with the given key.
func (c Category) Criterion(key string) (Criterion, bool) {
	for _, criterion := range c.Criteria {
		if criterion.Key == key {
			return criterion, true
		}
	}
	return Criterion{}, false
}

// HasCriterion reports whether key names one of the category's criteria.
func (c Category) HasCriterion(key string) bool {
	_, ok := c.Criterion(key)
	return ok
}

// CriterionKeys returns the criterion keys in definition order.
func (c Category) CriterionKeys() []string {
	keys := make([]string, 0, len(c.Criteria))
	for _, criterion := range c.Criteria {
		keys = append(keys, criterion.Key)
	}
	return keys
}

func (c Category) clone() Category {
	out := c
	out.Criteria = append([]Criterion(nil), c.Criteria...)
	return out
}

// Catalog is an immutable, ordered set of categories.
type Catalog struct {
	version    int
	categories []Category
	index      map[Key]int
}

// New builds a catalog from the given categories, rejecting duplicate category or criterion keys.
func New(version int, categories []Category) (*Catalog, error) {
	c := &Catalog{
		version:    version,
		categories: make([]Category, 0, len(categories)),
		index:      make(map[Key]int, len(categories)),
	}

	for _, category := range categories {
		key := Key(strings.TrimSpace(string(category.Key)))
		if key == "" {
			return nil, fmt.Errorf("category key must not be empty")
		}
		if _, exists := c.index[key]; exists {
			return nil, fmt.Errorf("duplicate category key %q", key)
		}
		if category.MaxPoints < 0 {
			return nil, fmt.Errorf("category %q: max points must not be negative", key)
		}

		seen := make(map[string]struct{}, len(category.Criteria))
		for _, criterion := range category.Criteria {
			if strings.TrimSpace(criterion.Key) == "" {
				return nil, fmt.Errorf("category %q: criterion key must not be empty", key)
			}
			if _, dup := seen[criterion.Key]; dup {
				return nil, fmt.Errorf("category %q: duplicate criterion key %q", key, criterion.Key)
			}
			if criterion.Points < 0 {
				return nil, fmt.Errorf("category %q: criterion %q has negative points", key, criterion.Key)
			}
			seen[criterion.Key] = struct{}{}
		}

		category.Key = key
		c.index[key] = len(c.categories)
		c.categories = append(c.categories, category.clone())
	}

	return c, nil
}

// Version reports the definition version the catalog was built from.
func (c *Catalog) Version() int {
	return c.version
}

// Get returns the category with the given key.
func (c *Catalog) Get(key Key) (Category, error) {
	idx, ok := c.index[key]
	if !ok {
		return Category{}, fmt.Errorf("%w: %s", ErrUnknownCategory, key)
	}
	return c.categories[idx].clone(), nil
}

// Lookup resolves a raw wire value into a category key.
func (c *Catalog) Lookup(raw string) (Key, error) {
	key := Key(strings.TrimSpace(raw))
	if _, ok := c.index[key]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownCategory, raw)
	}
	return key, nil
}

// List returns all categories in definition order.
func (c *Catalog) List() []Category {
	out := make([]Category, 0, len(c.categories))
	for _, category := range c.categories {
		out = append(out, category.clone())
	}
	return out
}

//go:embed activities.yaml
var defaultDefinition []byte

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the catalog parsed from the embedded activity definition.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(defaultDefinition)
		if err != nil {
			panic(fmt.Sprintf("catalog: embedded definition is invalid: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}
