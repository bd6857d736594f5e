package pipeline

import (
	"fmt"
	"os"
	"strings"
)

type Stage string

const (
	StageBootstrap Stage = "bootstrap"
	StageUpdate    Stage = "update"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// StageResult is the outcome of one pipeline stage. ErrorDetail is set
// iff Status is StatusFailure.
type StageResult struct {
	Stage       Stage
	Status      Status
	ErrorDetail string
}

func (sr StageResult) Succeeded() bool {
	return sr.Status == StatusSuccess
}

// Credentials is the secret bundle shared read-only by both stages. It is
// passed to the stack engine through the process environment and must never
// end up in logs or run output.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

func (c Credentials) String() string {
	return "Credentials{REDACTED}"
}

func (c Credentials) GoString() string {
	return c.String()
}

func (c Credentials) MarshalJSON() ([]byte, error) {
	return []byte(`"REDACTED"`), nil
}

func (c Credentials) IsZero() bool {
	return c.AccessKeyID == "" && c.SecretAccessKey == ""
}

// Config is the immutable configuration of a single pipeline run, resolved
// once at run start and discarded at run end.
type Config struct {
	Region       string
	AccountID    string
	ServiceUnits []string
	Credentials  Credentials
}

const DefaultRegion = "us-east-1"

// ConfigFromEnv builds a run Config from the trigger environment, the way a
// hosted runner would: secrets and account from env variables, service units
// from ECR_REPOSITORIES. The returned Config has been validated.
func ConfigFromEnv() (*Config, error) {
	cfg := &Config{
		Region:       os.Getenv("AWS_REGION"),
		AccountID:    os.Getenv("AWS_ACCOUNT_ID"),
		ServiceUnits: ParseServiceUnits(os.Getenv("ECR_REPOSITORIES")),
		Credentials: Credentials{
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		},
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseServiceUnits splits a space-separated list of service unit names.
func ParseServiceUnits(s string) []string {
	return strings.Fields(s)
}

// Validate checks the config before any stage is allowed to run. All
// failures are ConfigurationErrors, reported before the bootstrap stage.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Region) == "" {
		return ConfigurationError{Detail: "region is required"}
	}
	if strings.TrimSpace(c.AccountID) == "" {
		return ConfigurationError{Detail: "account id is required"}
	}
	if c.Credentials.AccessKeyID == "" {
		return ConfigurationError{Detail: "AWS_ACCESS_KEY_ID is required"}
	}
	if c.Credentials.SecretAccessKey == "" {
		return ConfigurationError{Detail: "AWS_SECRET_ACCESS_KEY is required"}
	}
	if len(c.ServiceUnits) == 0 {
		return ConfigurationError{Detail: "at least one service unit is required"}
	}
	seen := make(map[string]struct{}, len(c.ServiceUnits))
	for _, unit := range c.ServiceUnits {
		if strings.TrimSpace(unit) == "" {
			return ConfigurationError{Detail: "service unit names must be non-empty"}
		}
		if _, ok := seen[unit]; ok {
			return ConfigurationError{
				Detail: fmt.Sprintf("duplicate service unit %q", unit),
			}
		}
		seen[unit] = struct{}{}
	}
	return nil
}

// Environment is the target in cdk's aws://<account>/<region> form.
func (c *Config) Environment() string {
	return fmt.Sprintf("aws://%s/%s", c.AccountID, c.Region)
}
