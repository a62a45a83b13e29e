package remind

import (
	"errors"
	"fmt"

	"github.com/roach88/palletwatch/internal/model"
)

// Kind selects the trigger-date rule of a category.
type Kind string

const (
	// SameDay partners are reminded on the return date itself.
	SameDay Kind = "same_day"
	// DayBefore partners are reminded on the previous business day.
	DayBefore Kind = "day_before"
)

// Category is one partner class with its reminder settings.
type Category struct {
	// Name is the stable identifier used in dispatch kinds and metrics.
	Name string
	// Title is the partner name shown in messages; defaults to Name.
	Title    string
	Kind     Kind
	Keywords []string

	Recipients []string
	// Required lists the fields that must be filled; empty means both.
	Required []model.Field

	NeedDataAt  model.TimeOfDay
	ConfirmPass bool
	// ConfirmFrom and ConfirmUntil bound the confirm-pass hour marks,
	// inclusive.
	ConfirmFrom  int
	ConfirmUntil int
}

// DefaultExcluded lists partner keywords that never get reminders.
var DefaultExcluded = []string{"лента"}

// DefaultCategories returns the partner classes of the standard setup,
// without recipients.
func DefaultCategories() []Category {
	return []Category{
		{
			Name:         "x5",
			Title:        "X5",
			Kind:         SameDay,
			Keywords:     []string{"x5", "х5", "пермь"},
			NeedDataAt:   model.TimeOfDay{Hour: 12},
			ConfirmPass:  true,
			ConfirmUntil: 23,
		},
		{
			Name:         "дистры",
			Title:        "Дистры",
			Kind:         SameDay,
			Keywords:     []string{"дистр", "эксиси", "эксисси", "пт групп"},
			NeedDataAt:   model.TimeOfDay{Hour: 12},
			ConfirmPass:  true,
			ConfirmUntil: 23,
		},
		{
			Name:       "тандер",
			Title:      "Тандер",
			Kind:       DayBefore,
			Keywords:   []string{"тандер"},
			NeedDataAt: model.TimeOfDay{Hour: 14},
		},
	}
}

func (c Category) title() string {
	if c.Title != "" {
		return c.Title
	}
	return c.Name
}

func (c Category) required() []model.Field {
	if len(c.Required) == 0 {
		return []model.Field{model.FieldDriver, model.FieldTractor}
	}
	return c.Required
}

// Missing returns the required fields that row leaves empty.
func (c Category) Missing(row model.Row) []model.Field {
	var missing []model.Field
	for _, f := range c.required() {
		if !row.Filled(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// NeedDataKind is the dispatch kind of the need-data rule.
func (c Category) NeedDataKind() string {
	return c.Name + "-need-data"
}

// ConfirmPassKind is the dispatch kind of the confirm-pass rule at hour.
func (c Category) ConfirmPassKind(hour int) string {
	return fmt.Sprintf("%s-confirm-pass-%02d:00", c.Name, hour)
}

func (c Category) validate() error {
	var errs []error
	if c.Name == "" {
		errs = append(errs, errors.New("empty name"))
	}
	if c.Kind != SameDay && c.Kind != DayBefore {
		errs = append(errs, fmt.Errorf("unknown kind %q", c.Kind))
	}
	if len(c.Keywords) == 0 {
		errs = append(errs, errors.New("no keywords"))
	}
	if c.ConfirmPass && c.Kind != SameDay {
		errs = append(errs, errors.New("confirm_pass applies to same_day categories only"))
	}
	if c.NeedDataAt.Hour < 0 || c.NeedDataAt.Hour > 23 || c.NeedDataAt.Minute < 0 || c.NeedDataAt.Minute > 59 {
		errs = append(errs, fmt.Errorf("bad need-data time %s", c.NeedDataAt))
	}
	if c.ConfirmPass && (c.ConfirmFrom < 0 || c.ConfirmUntil > 23 || c.ConfirmFrom > c.ConfirmUntil) {
		errs = append(errs, fmt.Errorf("bad confirm-pass hours %d..%d", c.ConfirmFrom, c.ConfirmUntil))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("category %q: %w", c.Name, err)
	}
	return nil
}

// Class is the classification outcome of a partner label.
type Class int

const (
	// Unclassified labels match no category and are inert.
	Unclassified Class = iota
	// Matched labels belong to a category.
	Matched
	// Excluded labels are opted out of reminders.
	Excluded
)

func (c Class) String() string {
	switch c {
	case Unclassified:
		return "unclassified"
	case Matched:
		return "matched"
	case Excluded:
		return "excluded"
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// Classifier maps partner labels onto categories by case-insensitive
// keyword containment. Exclusions are checked first; among categories the
// first one listed wins.
type Classifier struct {
	categories []Category
	excluded   []string
}

// NewClassifier validates categories and returns a Classifier.
func NewClassifier(categories []Category, excluded []string) (*Classifier, error) {
	seen := make(map[string]bool, len(categories))
	for _, c := range categories {
		if err := c.validate(); err != nil {
			return nil, err
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("duplicate category %q", c.Name)
		}
		seen[c.Name] = true
	}
	return &Classifier{
		categories: append([]Category(nil), categories...),
		excluded:   append([]string(nil), excluded...),
	}, nil
}

// Classify returns the category of label and how it was classified.
func (cl *Classifier) Classify(label string) (Category, Class) {
	if model.IsEmptyCell(label) {
		return Category{}, Unclassified
	}
	for _, kw := range cl.excluded {
		if kw != "" && model.FoldContains(label, kw) {
			return Category{}, Excluded
		}
	}
	for _, c := range cl.categories {
		for _, kw := range c.Keywords {
			if kw != "" && model.FoldContains(label, kw) {
				return c, Matched
			}
		}
	}
	return Category{}, Unclassified
}

// Categories returns the configured categories.
func (cl *Classifier) Categories() []Category {
	return append([]Category(nil), cl.categories...)
}
