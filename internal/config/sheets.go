package config

import (
	"os"
	"strings"

	"github.com/Veraticus/fintracker/internal/sheets"
	"github.com/spf13/viper"
)

// LoadSheetsConfig loads Google Sheets settings. Values under the sheets.*
// key (config file or FINTRACKER_SHEETS_* variables) win over the plain
// GOOGLE_SHEETS_* variables, which win over defaults.
func LoadSheetsConfig(v *viper.Viper, currency, timezone string) (*sheets.Config, error) {
	config := sheets.DefaultConfig()
	if currency != "" {
		config.Currency = strings.ToUpper(currency)
	}
	if timezone != "" {
		config.TimeZone = timezone
	}

	pick := func(key, env string) string {
		if value := strings.TrimSpace(v.GetString("sheets." + key)); value != "" {
			return value
		}
		return strings.TrimSpace(os.Getenv(env))
	}

	config.ServiceAccountPath = ExpandPath(pick("service_account_path", "GOOGLE_SHEETS_SERVICE_ACCOUNT_PATH"))
	config.ClientID = pick("client_id", "GOOGLE_SHEETS_CLIENT_ID")
	config.ClientSecret = pick("client_secret", "GOOGLE_SHEETS_CLIENT_SECRET")
	config.RefreshToken = pick("refresh_token", "GOOGLE_SHEETS_REFRESH_TOKEN")
	config.SpreadsheetID = pick("spreadsheet_id", "GOOGLE_SHEETS_SPREADSHEET_ID")
	if name := pick("spreadsheet_name", "GOOGLE_SHEETS_SPREADSHEET_NAME"); name != "" {
		config.SpreadsheetName = name
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}
