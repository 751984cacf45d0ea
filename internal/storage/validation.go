package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/fintracker/internal/model"
	"github.com/Veraticus/fintracker/internal/taxonomy"
)

// Validation errors.
var (
	ErrNilContext           = errors.New("context cannot be nil")
	ErrEmptyString          = errors.New("string parameter cannot be empty")
	ErrNilParameter         = errors.New("parameter cannot be nil")
	ErrInvalidID            = errors.New("id must be non-zero")
	ErrInvalidDateRange     = errors.New("start date must be before end date")
	ErrInvalidExpense       = errors.New("invalid expense")
	ErrInvalidPending       = errors.New("invalid pending decision")
	ErrInvalidAlias         = errors.New("invalid merchant alias")
	ErrInvalidFeedback      = errors.New("invalid feedback event")
	ErrInvalidGroup         = errors.New("invalid group")
	ErrInconsistentCategory = errors.New("subcategory does not belong to category")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateID ensures an identifier is set. Chat ids may be negative.
func validateID(id int64, paramName string) error {
	if id == 0 {
		return fmt.Errorf("%w: %s", ErrInvalidID, paramName)
	}
	return nil
}

func validateDateRange(start, end time.Time) error {
	if end.Before(start) {
		return fmt.Errorf("%w: end date %v is before start date %v", ErrInvalidDateRange, end, start)
	}
	return nil
}

// validateCategoryPair checks that category is known and that subcategory,
// when set, belongs to it.
func validateCategoryPair(category, subcategory string) error {
	tax := taxonomy.Default()
	if !tax.IsCategory(category) {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidExpense, category)
	}
	if subcategory == "" {
		return nil
	}
	if parent := tax.ParentOf(subcategory); parent != category {
		return fmt.Errorf("%w: %s is not in %s", ErrInconsistentCategory, subcategory, category)
	}
	return nil
}

// validateExpense validates an expense before insertion.
func validateExpense(expense *model.Expense) error {
	if expense == nil {
		return fmt.Errorf("%w: expense", ErrNilParameter)
	}
	if expense.GroupID == 0 {
		return fmt.Errorf("%w: missing group", ErrInvalidExpense)
	}
	if expense.UserID == 0 {
		return fmt.Errorf("%w: missing user", ErrInvalidExpense)
	}
	if !expense.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidExpense)
	}
	if expense.AutoConfidence < 0 || expense.AutoConfidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidExpense)
	}
	return validateCategoryPair(expense.Category, expense.Subcategory)
}

// validatePending validates a pending decision before insertion.
func validatePending(pending *model.PendingDecision) error {
	if pending == nil {
		return fmt.Errorf("%w: pending", ErrNilParameter)
	}
	if pending.GroupID == 0 || pending.UserID == 0 {
		return fmt.Errorf("%w: missing group or user", ErrInvalidPending)
	}
	if !pending.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidPending)
	}
	if pending.PredictedSubcategory != "" {
		if err := validateCategoryPair(pending.PredictedCategory, pending.PredictedSubcategory); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPending, err)
		}
	}
	return nil
}

// validateAlias validates a merchant alias.
func validateAlias(alias *model.MerchantAlias) error {
	if alias == nil {
		return fmt.Errorf("%w: alias", ErrNilParameter)
	}
	if alias.GroupID == 0 {
		return fmt.Errorf("%w: missing group", ErrInvalidAlias)
	}
	if strings.TrimSpace(alias.Pattern) == "" {
		return fmt.Errorf("%w: missing pattern", ErrInvalidAlias)
	}
	if _, ok := taxonomy.Default().Subcategory(alias.Subcategory); !ok {
		return fmt.Errorf("%w: unknown subcategory %q", ErrInvalidAlias, alias.Subcategory)
	}
	if alias.Confidence < 0 || alias.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidAlias)
	}
	return nil
}

// validateFeedback validates a feedback event.
func validateFeedback(event *model.FeedbackEvent) error {
	if event == nil {
		return fmt.Errorf("%w: feedback", ErrNilParameter)
	}
	if event.GroupID == 0 {
		return fmt.Errorf("%w: missing group", ErrInvalidFeedback)
	}
	if strings.TrimSpace(event.NormalizedNote) == "" {
		return fmt.Errorf("%w: missing note", ErrInvalidFeedback)
	}
	if strings.TrimSpace(event.ChosenSubcategory) == "" {
		return fmt.Errorf("%w: missing chosen subcategory", ErrInvalidFeedback)
	}
	return nil
}

// validateGroup validates group settings.
func validateGroup(group *model.Group) error {
	if group == nil {
		return fmt.Errorf("%w: group", ErrNilParameter)
	}
	if group.ID == 0 {
		return fmt.Errorf("%w: missing id", ErrInvalidGroup)
	}
	if strings.TrimSpace(group.Currency) == "" {
		return fmt.Errorf("%w: missing currency", ErrInvalidGroup)
	}
	if _, err := time.LoadLocation(group.Timezone); err != nil || group.Timezone == "" {
		return fmt.Errorf("%w: unknown timezone %q", ErrInvalidGroup, group.Timezone)
	}
	if group.ReminderTime != "" {
		if _, err := time.Parse("15:04", group.ReminderTime); err != nil {
			return fmt.Errorf("%w: reminder time %q", ErrInvalidGroup, group.ReminderTime)
		}
	}
	return nil
}
