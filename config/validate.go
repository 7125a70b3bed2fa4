package config

import (
	"errors"
	"net"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.CacheDir, validation.Required),
		validation.Field(&c.Env,
			validation.Required,
			validation.In(EnvDev, EnvStaging, EnvProd),
		),
		validation.Field(&c.LogLevel,
			validation.Required,
			validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
		),
		validation.Field(&c.CircuitBreakerThreshold, validation.Required, validation.Min(1)),
		validation.Field(&c.CoolDownSeconds, validation.Required, validation.Min(1)),
		validation.Field(&c.CacheThresholdSeconds, validation.Min(0)),
		validation.Field(&c.MaxAttempts, validation.Required, validation.Min(1), validation.Max(10)),
		validation.Field(&c.InitialBackoff, validation.Required, validation.By(validateDuration)),
		validation.Field(&c.RequestTimeout, validation.Required, validation.By(validateDuration)),
		validation.Field(&c.MetricsAddress, validation.By(validateHostPort)),
		validation.Field(&c.Environment, validation.By(validateEnvironment)),
	)
	if err == nil {
		return nil
	}

	kind := KindInvalid
	if hasRequired(err) {
		kind = KindMissingField
	}
	return &Error{Kind: kind, Path: c.File(), Err: err}
}

func validateEnvironment(value interface{}) error {
	env, ok := value.(EnvironmentConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be an EnvironmentConfig")
	}
	if env.Current == "" {
		return validation.ErrRequired
	}

	profile, ok := env.Profiles[strings.ToLower(env.Current)]
	if !ok {
		return validation.Errors{
			env.Current: validation.ErrRequired,
		}
	}

	return validation.Errors{
		env.Current: validation.ValidateStruct(&profile,
			validation.Field(&profile.Endpoint, validation.Required, validation.By(validateEndpoint)),
			validation.Field(&profile.RoleAlias, validation.Required),
			validation.Field(&profile.CertPath, validation.Required),
			validation.Field(&profile.KeyPath, validation.Required),
			validation.Field(&profile.CAPath, validation.Required),
		),
	}.Filter()
}

// validateEndpoint accepts a host, a host:port, or an https URL.
func validateEndpoint(value interface{}) error {
	endpoint, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}
	if endpoint == "" {
		return nil
	}
	if strings.Contains(endpoint, "://") {
		return is.URL.Validate(endpoint)
	}
	host := endpoint
	if h, _, err := net.SplitHostPort(endpoint); err == nil {
		host = h
	}
	if err := is.Host.Validate(host); err != nil {
		return validation.NewError("validation_invalid_host", "must be a valid host name")
	}
	return nil
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}
	if addr == "" {
		return nil
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	d, err := time.ParseDuration(durationStr)
	if err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}
	if d <= 0 {
		return validation.NewError("validation_invalid_duration", "must be positive")
	}

	return nil
}

// hasRequired reports whether any nested validation failure is a missing
// required value.
func hasRequired(err error) bool {
	var errs validation.Errors
	if errors.As(err, &errs) {
		for _, e := range errs {
			if hasRequired(e) {
				return true
			}
		}
		return false
	}

	var verr validation.Error
	if errors.As(err, &verr) {
		return verr.Code() == validation.ErrRequired.Code()
	}
	return false
}
