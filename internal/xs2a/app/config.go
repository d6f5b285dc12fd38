package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseFile string `env:"XS2A_DATABASE_FILE" validate:"required"`         // Optional: path to SQLite database file (default: ./xs2a.db)
	PepperFile   string `env:"XS2A_PEPPER_FILE"`                               // Optional: pepper for sandbox password hashes (default: ./pepper)
	IDKey        string `env:"XS2A_ID_KEY" validate:"required,min=16"`         // Required: key material for encrypting resource ids
	JWKSFile     string `env:"XS2A_TPP_JWKS_FILE" validate:"required,file"`    // Required: JWKS of trusted TPP token issuers
	FixturesFile string `env:"XS2A_SANDBOX_FIXTURES" validate:"required,file"` // Required: sandbox PSU fixtures

	TokenIssuer   string        `env:"XS2A_TPP_TOKEN_ISSUER"`   // Optional: expected iss of TPP tokens
	TokenAudience []string      `env:"XS2A_TPP_TOKEN_AUDIENCE"` // Optional: comma separated expected aud values
	TokenLeeway   time.Duration `env:"XS2A_TPP_TOKEN_LEEWAY" validate:"gte=0"`

	PaymentProducts  []string `env:"XS2A_PAYMENT_PRODUCTS" validate:"min=1,dive,required"`
	OneConsentPerTpp bool     `env:"XS2A_ONE_CONSENT_PER_TPP"`                         // Terminate superseded recurring AIS consents (default: true)
	RequirePsuID     bool     `env:"XS2A_REQUIRE_PSU_ID"`                              // Reject AIS consents without PSU-ID (default: false)
	MaxBasketEntries int      `env:"XS2A_MAX_BASKET_ENTRIES" validate:"min=1,max=100"` // default: 20

	ConsentConfirmationTTL time.Duration `env:"XS2A_CONSENT_CONFIRMATION_TTL" validate:"gt=0"` // default: 30m
	PaymentConfirmationTTL time.Duration `env:"XS2A_PAYMENT_CONFIRMATION_TTL" validate:"gt=0"` // default: 30m
	SweepInterval          time.Duration `env:"XS2A_SWEEP_INTERVAL" validate:"gt=0"`           // default: 1m

	Env                 string        `env:"ENV"`                                              // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        `env:"LOG_LEVEL" validate:"oneof=debug info warn error"` // default: info
	LogFormat           string        `env:"LOG_FORMAT" validate:"oneof=json text"`            // default: json
	Port                int           `env:"PORT" validate:"min=1,max=65535"`                  // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" validate:"gt=0"`            // default: 10s
}

// LoadConfig reads the configuration from the environment. Files listed in
// XS2A_ENV_FILES (default: .env) are loaded first; a missing file is not an
// error. Variables already set win over the files.
func LoadConfig() (Config, error) {
	if err := loadEnvFiles(strings.Split(getEnvOrDefault("XS2A_ENV_FILES", ".env"), ",")...); err != nil {
		return Config{}, err
	}

	cfg := Config{
		DatabaseFile: getEnvOrDefault("XS2A_DATABASE_FILE", "xs2a.db"),
		PepperFile:   getEnvOrDefault("XS2A_PEPPER_FILE", "pepper"),
		IDKey:        os.Getenv("XS2A_ID_KEY"),
		JWKSFile:     os.Getenv("XS2A_TPP_JWKS_FILE"),
		FixturesFile: os.Getenv("XS2A_SANDBOX_FIXTURES"),

		TokenIssuer:   os.Getenv("XS2A_TPP_TOKEN_ISSUER"),
		TokenAudience: getEnvListOrDefault("XS2A_TPP_TOKEN_AUDIENCE", nil),
		TokenLeeway:   getEnvDurationOrDefault("XS2A_TPP_TOKEN_LEEWAY", 30*time.Second),

		PaymentProducts:  getEnvListOrDefault("XS2A_PAYMENT_PRODUCTS", []string{"sepa-credit-transfers", "instant-sepa-credit-transfers"}),
		OneConsentPerTpp: getEnvBoolOrDefault("XS2A_ONE_CONSENT_PER_TPP", true),
		RequirePsuID:     getEnvBoolOrDefault("XS2A_REQUIRE_PSU_ID", false),
		MaxBasketEntries: getEnvIntOrDefault("XS2A_MAX_BASKET_ENTRIES", 20),

		ConsentConfirmationTTL: getEnvDurationOrDefault("XS2A_CONSENT_CONFIRMATION_TTL", 30*time.Minute),
		PaymentConfirmationTTL: getEnvDurationOrDefault("XS2A_PAYMENT_CONFIRMATION_TTL", 30*time.Minute),
		SweepInterval:          getEnvDurationOrDefault("XS2A_SWEEP_INTERVAL", time.Minute),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid settings by their variable names.
func (c Config) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("env")
	})

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func loadEnvFiles(files ...string) error {
	for _, file := range files {
		file = strings.TrimSpace(file)
		if file == "" {
			continue
		}
		if strings.HasPrefix(file, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			file = strings.Replace(file, "~", home, 1)
		}
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}

	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
