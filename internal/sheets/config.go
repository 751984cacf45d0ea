// Package sheets exports recorded expenses to Google Sheets.
package sheets

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/fintracker/internal/common"
)

// Config holds the configuration for the Google Sheets writer.
type Config struct {
	ClientID           string
	ClientSecret       string
	RefreshToken       string
	ServiceAccountPath string
	SpreadsheetID      string
	SpreadsheetName    string
	TimeZone           string
	Currency           string
	BatchSize          int
	RetryAttempts      int
	RetryDelay         time.Duration
	EnableFormatting   bool
}

// DefaultSpreadsheetName is used when a new spreadsheet has to be created.
const DefaultSpreadsheetName = "Fintracker Expenses"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		EnableFormatting: true,
		SpreadsheetName:  DefaultSpreadsheetName,
		TimeZone:         "Europe/Moscow",
		Currency:         "RUB",
		BatchSize:        1000,
		RetryAttempts:    3,
		RetryDelay:       time.Second,
	}
}

// Validate reports every configuration problem at once, wrapped in
// common.ErrInvalidConfig. Exactly one credential source must be set.
func (c *Config) Validate() error {
	var problems []string

	hasOAuth := c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
	switch hasServiceAccount := c.ServiceAccountPath != ""; {
	case !hasOAuth && !hasServiceAccount:
		problems = append(problems, "no credentials: set a service account path or OAuth2 client id, secret and refresh token")
	case hasOAuth && hasServiceAccount:
		problems = append(problems, "both OAuth2 and service account credentials are set; keep one")
	}

	if c.SpreadsheetID == "" && c.SpreadsheetName == "" {
		problems = append(problems, "spreadsheet id or name is required")
	}
	if c.TimeZone != "" {
		if _, err := time.LoadLocation(c.TimeZone); err != nil {
			problems = append(problems, fmt.Sprintf("unknown time zone %q", c.TimeZone))
		}
	}
	if c.Currency != "" && len(c.Currency) != 3 {
		problems = append(problems, fmt.Sprintf("currency %q is not a 3-letter code", c.Currency))
	}
	if c.BatchSize <= 0 {
		problems = append(problems, "batch size must be positive")
	}
	if c.RetryAttempts < 0 || c.RetryDelay < 0 {
		problems = append(problems, "retry settings cannot be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: sheets: %s", common.ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// CurrencyPattern returns the Sheets number format for the configured currency.
func (c *Config) CurrencyPattern() string {
	switch c.Currency {
	case "USD":
		return "$#,##0.00"
	case "EUR":
		return "#,##0.00 €"
	case "", "RUB":
		return "#,##0.00 ₽"
	default:
		return "#,##0.00 \"" + c.Currency + "\""
	}
}
