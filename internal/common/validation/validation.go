package validation

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	MaxUsernameLength  = 32
	MaxCategoryLength  = 40
	MaxGoalTitleLength = 80
	MaxUserIDLength    = 128

	// DateLayout is the calendar date format used for deadlines
	DateLayout = "2006-01-02"
)

var userIDRegex = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateAmount checks a transaction amount: finite and strictly positive.
func ValidateAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("amount must be a finite number")
	}
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	return nil
}

// ValidateGoalAmount checks a goal amount: finite and not negative.
func ValidateGoalAmount(amount float64) error {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return fmt.Errorf("goal must be a finite number")
	}
	if amount < 0 {
		return fmt.Errorf("goal cannot be negative")
	}
	return nil
}

// ParseAmount parses user input such as "12.50" into a float amount.
func ParseAmount(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("amount cannot be empty")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	f, _ := d.Float64()
	if err := ValidateAmount(f); err != nil {
		return 0, err
	}
	return f, nil
}

// ParseGoalAmount parses a goal such as "1500" and allows zero.
func ParseGoalAmount(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("goal cannot be empty")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid goal %q: %w", raw, err)
	}
	f, _ := d.Float64()
	if err := ValidateGoalAmount(f); err != nil {
		return 0, err
	}
	return f, nil
}

func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return fmt.Errorf("username cannot exceed %d characters", MaxUsernameLength)
	}
	return nil
}

func ValidateCategory(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("category cannot be empty")
	}
	if utf8.RuneCountInString(name) > MaxCategoryLength {
		return fmt.Errorf("category cannot exceed %d characters", MaxCategoryLength)
	}
	return nil
}

func ValidateGoalTitle(title string) error {
	if utf8.RuneCountInString(title) > MaxGoalTitleLength {
		return fmt.Errorf("goal title cannot exceed %d characters", MaxGoalTitleLength)
	}
	return nil
}

// ValidateUserID checks an externally assigned user identifier.
func ValidateUserID(id string) error {
	if id == "" {
		return fmt.Errorf("user id cannot be empty")
	}
	if len(id) > MaxUserIDLength {
		return fmt.Errorf("user id cannot exceed %d characters", MaxUserIDLength)
	}
	if !userIDRegex.MatchString(id) {
		return fmt.Errorf("user id contains invalid characters")
	}
	return nil
}

// ParseDeadline normalizes a calendar date. Empty input means no deadline.
func ParseDeadline(raw string) (*string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid deadline %q, expected YYYY-MM-DD", raw)
	}
	normalized := t.Format(DateLayout)
	return &normalized, nil
}
