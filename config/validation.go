package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/Swind/go-task-scaling/core"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Is lets callers match any validation failure with core.ErrInvalidArgument.
func (e ValidationErrors) Is(target error) bool {
	return target == core.ErrInvalidArgument
}

// HasErrors returns true if there are any validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Fields lists the failing field paths in report order.
func (e ValidationErrors) Fields() []string {
	out := make([]string, len(e))
	for i, err := range e {
		out[i] = err.Field
	}
	return out
}

// Validator validates configuration values.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

func (v *Validator) addError(field, message string) {
	v.errors = append(v.errors, ValidationError{Field: field, Message: message})
}

// Validate validates the entire configuration and returns any errors.
func (v *Validator) Validate(cfg *Config) error {
	v.errors = make(ValidationErrors, 0)

	v.validateHarnessConfig(&cfg.Harness)
	v.validateLoggingConfig(&cfg.Logging)
	v.validateMetricsConfig(&cfg.Metrics)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

// Validate is shorthand for NewValidator().Validate(c).
func (c *Config) Validate() error {
	return NewValidator().Validate(c)
}

func (v *Validator) validateHarnessConfig(cfg *HarnessConfig) {
	if cfg.Tasks < 0 {
		v.addError("harness.tasks", "task count must be non-negative")
	}
	if cfg.Work < 0 {
		v.addError("harness.work", "simulated work must be non-negative")
	}
	if cfg.Timeout < 0 {
		v.addError("harness.timeout", "timeout must be non-negative")
	}

	if _, err := cfg.ExecutionStrategy(); err != nil {
		field := "harness.strategy"
		switch {
		case strings.Contains(err.Error(), "pool size"):
			field = "harness.pool_size"
		case strings.Contains(err.Error(), "thread budget"):
			field = "harness.max_threads"
		}
		v.addError(field, strings.TrimPrefix(err.Error(), core.ErrInvalidArgument.Error()+": "))
	}
}

func (v *Validator) validateLoggingConfig(cfg *LoggingConfig) {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if cfg.Level == "" {
		v.addError("logging.level", "log level is required")
	} else if !validLevels[strings.ToLower(cfg.Level)] {
		v.addError("logging.level", fmt.Sprintf("invalid log level '%s', must be one of: debug, info, warn, error", cfg.Level))
	}

	switch strings.ToLower(cfg.Format) {
	case "console", "json":
	case "":
		v.addError("logging.format", "log format is required")
	default:
		v.addError("logging.format", fmt.Sprintf("invalid log format '%s', must be one of: console, json", cfg.Format))
	}

	switch strings.ToLower(cfg.Output) {
	case "", "stdout":
	case "file", "both":
		if cfg.FilePath == "" {
			v.addError("logging.file_path", "file path is required when output includes a file")
		}
		if cfg.MaxSize <= 0 {
			v.addError("logging.max_size", "max size must be positive")
		}
	default:
		v.addError("logging.output", fmt.Sprintf("invalid log output '%s', must be one of: stdout, file, both", cfg.Output))
	}

	if cfg.MaxBackups < 0 {
		v.addError("logging.max_backups", "max backups must be non-negative")
	}
	if cfg.MaxAge < 0 {
		v.addError("logging.max_age", "max age must be non-negative")
	}
}

func (v *Validator) validateMetricsConfig(cfg *MetricsConfig) {
	if !cfg.Enabled {
		return
	}
	if !isValidAddress(cfg.Address) {
		v.addError("metrics.address", "invalid address format, expected host:port or :port")
	}
	if !strings.HasPrefix(cfg.Path, "/") {
		v.addError("metrics.path", "path must start with /")
	}
	if cfg.PollInterval <= 0 {
		v.addError("metrics.poll_interval", "poll interval must be positive")
	}
}

// isValidAddress checks if the address is a valid host:port format.
func isValidAddress(addr string) bool {
	if addr == "" {
		return false
	}
	_, port, err := net.SplitHostPort(addr)
	return err == nil && port != ""
}

// AsValidationErrors extracts ValidationErrors from err.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var ve ValidationErrors
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
