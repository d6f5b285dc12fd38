package sandbox

import (
	"fmt"
	"os"
	"reflect"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Fixtures describe the PSUs known to the sandbox bank.
type Fixtures struct {
	MaxAttempts       int          `yaml:"max_attempts" validate:"gte=0"`
	NotificationModes []string     `yaml:"notification_modes" validate:"dive,oneof=SCA PROCESS LAST"`
	Psus              []PsuFixture `yaml:"psus" validate:"required,min=1,dive"`

	// DecoupledConfirmSeconds is how long the simulated PSU takes to confirm
	// a decoupled SCA on their device. Zero confirms on the first check.
	DecoupledConfirmSeconds int `yaml:"decoupled_confirm_seconds" validate:"gte=0"`
}

// PsuFixture is one online banking user. Passwords are stored in clear in
// the fixture file and hashed when the bank starts.
type PsuFixture struct {
	PsuID       string `yaml:"psu_id" validate:"required"`
	CorporateID string `yaml:"corporate_id"`
	Password    string `yaml:"password" validate:"required"`
	TotpSecret  string `yaml:"totp_secret" validate:"omitempty,alphanum,uppercase"`
	OneFactor   bool   `yaml:"one_factor"`
	Corporate   bool   `yaml:"corporate"`
	Blocked     bool   `yaml:"blocked"`
	// DeclinesDecoupled makes the PSU refuse every decoupled SCA.
	DeclinesDecoupled bool            `yaml:"declines_decoupled"`
	Methods           []MethodFixture `yaml:"methods" validate:"required_if=OneFactor false,dive"`
}

type MethodFixture struct {
	ID   string `yaml:"id" validate:"required"`
	Type string `yaml:"type" validate:"required,oneof=SMS_OTP CHIP_OTP PHOTO_OTP PUSH_OTP APP_OTP"`
	Name string `yaml:"name"`
}

// Decoupled methods are confirmed on a separate device.
func (m MethodFixture) Decoupled() bool {
	return m.Type == "PUSH_OTP" || m.Type == "APP_OTP"
}

// LoadFixtures reads and validates a YAML fixture file. Environment
// variables in the file are expanded.
func LoadFixtures(path string) (*Fixtures, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return ParseFixtures([]byte(os.ExpandEnv(string(content))))
}

// ParseFixtures decodes and validates fixture YAML.
func ParseFixtures(data []byte) (*Fixtures, error) {
	f := new(Fixtures)
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}

	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("yaml")
	})
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("validate fixtures: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Psus))
	for _, p := range f.Psus {
		if _, dup := seen[p.PsuID]; dup {
			return nil, fmt.Errorf("validate fixtures: duplicate psu_id %q", p.PsuID)
		}
		seen[p.PsuID] = struct{}{}
	}

	if f.MaxAttempts == 0 {
		f.MaxAttempts = 3
	}
	return f, nil
}
