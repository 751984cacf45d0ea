package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/fintracker/internal/classification"
	"github.com/Veraticus/fintracker/internal/common"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. FINTRACKER_HTTP_ADDR.
const EnvPrefix = "FINTRACKER"

// Defaults.
const (
	DefaultDatabasePath     = "~/.local/share/fintracker/fintracker.db"
	DefaultCurrency         = "RUB"
	DefaultTimezone         = "Europe/Moscow"
	DefaultWebAppURL        = "http://localhost:8089"
	DefaultHTTPAddr         = ":8089"
	DefaultAMQPExchange     = "fintracker"
	DefaultAMQPRoutingKey   = "events"
	DefaultReminderInterval = 60 * time.Second

	MinReminderInterval = 15 * time.Second
	MaxReminderInterval = time.Hour
)

// Settings is the resolved runtime configuration.
type Settings struct {
	Database              DatabaseSettings
	HTTP                  HTTPSettings
	AMQP                  AMQPSettings
	DefaultCurrency       string
	DefaultTimezone       string
	WebAppURL             string
	AppURLTemplate        string
	AutoCategoryThreshold float64
	ReminderInterval      time.Duration
}

// DatabaseSettings configures the SQLite store.
type DatabaseSettings struct {
	Path string
}

// HTTPSettings configures the API server.
type HTTPSettings struct {
	Addr           string
	AllowedOrigins []string
}

// AMQPSettings configures event publishing. An empty URL disables it.
type AMQPSettings struct {
	URL        string
	Exchange   string
	RoutingKey string
}

// Enabled reports whether an AMQP broker is configured.
func (a AMQPSettings) Enabled() bool {
	return a.URL != ""
}

// LoadEnvFile loads variables from .env files into the process
// environment. Missing files are ignored.
func LoadEnvFile(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", DefaultDatabasePath)
	v.SetDefault("currency", DefaultCurrency)
	v.SetDefault("timezone", DefaultTimezone)
	v.SetDefault("classification.auto_threshold", classification.DefaultThreshold)
	v.SetDefault("reminder.interval", DefaultReminderInterval.String())
	v.SetDefault("webapp.url", DefaultWebAppURL)
	v.SetDefault("webapp.app_url_template", "")
	v.SetDefault("http.addr", DefaultHTTPAddr)
	v.SetDefault("http.allowed_origins", []string{"*"})
	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", DefaultAMQPExchange)
	v.SetDefault("amqp.routing_key", DefaultAMQPRoutingKey)
}

// BindEnv makes v read FINTRACKER_* environment variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load resolves settings from v. Out-of-range numbers are clamped and
// unparsable ones fall back to their defaults before validation.
func Load(v *viper.Viper) (*Settings, error) {
	s := &Settings{
		Database: DatabaseSettings{
			Path: ExpandPath(strings.TrimSpace(v.GetString("database.path"))),
		},
		HTTP: HTTPSettings{
			Addr:           strings.TrimSpace(v.GetString("http.addr")),
			AllowedOrigins: splitList(v.GetStringSlice("http.allowed_origins")),
		},
		AMQP: AMQPSettings{
			URL:        strings.TrimSpace(v.GetString("amqp.url")),
			Exchange:   strings.TrimSpace(v.GetString("amqp.exchange")),
			RoutingKey: strings.TrimSpace(v.GetString("amqp.routing_key")),
		},
		DefaultCurrency:       strings.ToUpper(strings.TrimSpace(v.GetString("currency"))),
		DefaultTimezone:       strings.TrimSpace(v.GetString("timezone")),
		WebAppURL:             strings.TrimSpace(v.GetString("webapp.url")),
		AppURLTemplate:        strings.TrimSpace(v.GetString("webapp.app_url_template")),
		AutoCategoryThreshold: parseThreshold(v.GetString("classification.auto_threshold")),
		ReminderInterval:      parseInterval(v.GetString("reminder.interval")),
	}

	if s.DefaultCurrency == "" {
		s.DefaultCurrency = DefaultCurrency
	}
	if s.DefaultTimezone == "" {
		s.DefaultTimezone = DefaultTimezone
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the settings and reports every problem at once.
func (s *Settings) Validate() error {
	var problems []string

	if s.Database.Path == "" {
		problems = append(problems, "database path cannot be empty")
	}
	if len(s.DefaultCurrency) != 3 {
		problems = append(problems, fmt.Sprintf("invalid currency '%s': must be a 3-letter code", s.DefaultCurrency))
	}
	if _, err := time.LoadLocation(s.DefaultTimezone); err != nil {
		problems = append(problems, fmt.Sprintf("invalid timezone '%s': %v", s.DefaultTimezone, err))
	}
	if s.AutoCategoryThreshold < 0 || s.AutoCategoryThreshold > 1 {
		problems = append(problems, fmt.Sprintf("invalid auto threshold %v: must be between 0 and 1", s.AutoCategoryThreshold))
	}
	if s.ReminderInterval < MinReminderInterval || s.ReminderInterval > MaxReminderInterval {
		problems = append(problems, fmt.Sprintf("invalid reminder interval %v", s.ReminderInterval))
	}
	if s.HTTP.Addr == "" {
		problems = append(problems, "HTTP address cannot be empty")
	}
	if s.WebAppURL != "" {
		if u, err := url.Parse(s.WebAppURL); err != nil || u.Scheme == "" || u.Host == "" {
			problems = append(problems, fmt.Sprintf("invalid web app URL '%s'", s.WebAppURL))
		}
	}

	if s.AMQP.Enabled() {
		if u, err := url.Parse(s.AMQP.URL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL: %v", err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
		}
		if s.AMQP.Exchange == "" {
			problems = append(problems, "AMQP exchange cannot be empty when AMQP URL is provided")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w:\n- %s", common.ErrInvalidConfig, strings.Join(problems, "\n- "))
	}
	return nil
}

// Location returns the default timezone, falling back to UTC.
func (s *Settings) Location() *time.Location {
	loc, err := time.LoadLocation(s.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AppURL returns the dashboard link for a group.
func (s *Settings) AppURL(groupID int64) string {
	if s.AppURLTemplate != "" {
		return strings.ReplaceAll(s.AppURLTemplate, "{group_id}", strconv.FormatInt(groupID, 10))
	}
	if s.WebAppURL == "" {
		return ""
	}
	return strings.TrimRight(s.WebAppURL, "/") + "/?group_id=" + strconv.FormatInt(groupID, 10)
}

func parseThreshold(raw string) float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return classification.DefaultThreshold
	}
	return classification.ClampThreshold(value)
}

// parseInterval accepts Go durations ("90s") or plain seconds ("90").
func parseInterval(raw string) time.Duration {
	raw = strings.TrimSpace(raw)
	interval, err := time.ParseDuration(raw)
	if err != nil {
		seconds, convErr := strconv.Atoi(raw)
		if convErr != nil {
			return DefaultReminderInterval
		}
		interval = time.Duration(seconds) * time.Second
	}
	return min(max(interval, MinReminderInterval), MaxReminderInterval)
}

// splitList flattens comma-separated entries, which is how list values
// arrive from the environment.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
