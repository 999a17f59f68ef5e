package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"
)

// SupportedGrammars lists the declaration grammars the extractor understands.
var SupportedGrammars = []string{"default", "json"}

// ValidationError represents a validation error with context
type ValidationError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// addErr records err if it is a ValidationError, ignoring nil.
func (ve *ValidationErrors) addErr(err error, suggestion string) {
	if err == nil {
		return
	}
	v, ok := err.(ValidationError)
	if !ok {
		v = ValidationError{Message: err.Error()}
	}
	v.Suggestion = suggestion
	*ve = append(*ve, v)
}

// ValidateRequired checks if a required string field is not empty
func ValidateRequired(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return ValidationError{
			Field:   field,
			Value:   value,
			Message: "is required",
		}
	}
	return nil
}

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return nil
		}
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// ValidatePositive checks that a duration is greater than zero
func ValidatePositive(field string, value time.Duration) error {
	if value <= 0 {
		return ValidationError{
			Field:   field,
			Value:   value,
			Message: "must be greater than zero",
		}
	}
	return nil
}

// Validate checks the configuration and returns a ConfigurationError
// describing every problem found, or nil.
func (c DiscoverConfig) Validate() error {
	var errs ValidationErrors

	errs.addErr(ValidateRequired("discover.serviceVariable", c.Discover.ServiceVariable), "")
	errs.addErr(ValidateOneOf("discover.grammar", c.Discover.Grammar, SupportedGrammars), "")
	errs.addErr(ValidateOneOf("registry.backend", c.Registry.Backend, []string{RegistryEtcd, RegistryMemory}), "")

	errs.addErr(ValidateRequired("host.id", c.Host.ID), "set host.id or pass --host-id")
	errs.addErr(ValidateRequired("host.realm", c.Host.Realm), "")
	if err := ValidateRequired("host.ip", c.Host.IP); err != nil {
		errs.addErr(err, fmt.Sprintf("set host.ip, pass --host-ip or export %s", HostIPEnv))
	} else if net.ParseIP(c.Host.IP) == nil {
		errs.Add("host.ip", "is not a valid IP address", c.Host.IP)
	}
	for _, segment := range []struct{ field, value string }{
		{"host.id", c.Host.ID},
		{"host.realm", c.Host.Realm},
	} {
		if strings.Contains(segment.value, "/") {
			errs.Add(segment.field, "must not contain '/'", segment.value)
		}
	}

	if c.Registry.Backend != RegistryMemory {
		if len(c.Etcd.Endpoints) == 0 {
			errs.Add("etcd.endpoints", "must have at least one endpoint")
		}
		for _, ep := range c.Etcd.Endpoints {
			if _, err := url.Parse(ep); err != nil || strings.TrimSpace(ep) == "" {
				errs.Add("etcd.endpoints", "contains an invalid endpoint", ep)
			}
		}
		errs.addErr(ValidatePositive("etcd.requestTimeout", c.Etcd.RequestTimeout), "")
	}
	if err := ValidateRequired("etcd.prefix", c.Etcd.Prefix); err != nil {
		errs.addErr(err, "")
	} else if !strings.HasPrefix(c.Etcd.Prefix, "/") {
		errs.Add("etcd.prefix", "must start with '/'", c.Etcd.Prefix)
	}
	if c.Etcd.WriteRate < 0 {
		errs.Add("etcd.writeRate", "must not be negative", c.Etcd.WriteRate)
	}

	errs.addErr(ValidateRequired("docker.host", c.Docker.Host), "")
	errs.addErr(ValidatePositive("docker.requestTimeout", c.Docker.RequestTimeout), "")
	errs.addErr(ValidatePositive("docker.enumerateTimeout", c.Docker.EnumerateTimeout), "")
	if c.Docker.RequestTimeout > 0 && c.Docker.EnumerateTimeout > 0 && c.Docker.EnumerateTimeout < c.Docker.RequestTimeout {
		errs.Add("docker.enumerateTimeout", "must not be below docker.requestTimeout", c.Docker.EnumerateTimeout)
	}

	errs.addErr(ValidatePositive("lease.ttl", c.Lease.TTL), "")
	errs.addErr(ValidatePositive("lease.renewInterval", c.Lease.RenewInterval), "")
	errs.addErr(ValidatePositive("lease.sweepInterval", c.Lease.SweepInterval), "")
	if c.Lease.RenewInterval > 0 && c.Lease.TTL > 0 && c.Lease.RenewInterval >= c.Lease.TTL/2 {
		errs.addErr(ValidationError{
			Field:   "lease.renewInterval",
			Value:   c.Lease.RenewInterval,
			Message: fmt.Sprintf("must be below half the lease TTL (%s)", c.Lease.TTL),
		}, "use a TTL of at least three renew intervals")
	}
	if c.Lease.SweepInterval > 0 && c.Lease.SweepInterval <= c.Lease.RenewInterval {
		errs.Add("lease.sweepInterval", "must be longer than lease.renewInterval", c.Lease.SweepInterval)
	}

	errs.addErr(ValidatePositive("supervisor.initialBackoff", c.Supervisor.InitialBackoff), "")
	errs.addErr(ValidatePositive("supervisor.healthInterval", c.Supervisor.HealthInterval), "")
	if c.Supervisor.MaxBackoff < c.Supervisor.InitialBackoff {
		errs.Add("supervisor.maxBackoff", "must not be below supervisor.initialBackoff", c.Supervisor.MaxBackoff)
	}

	if errs.HasErrors() {
		return newValidationFailure(errs)
	}
	return nil
}

// Warnings returns non-fatal advice about the configuration.
func (c DiscoverConfig) Warnings() []string {
	var warnings []string
	if c.Lease.RenewInterval > 0 && c.Lease.TTL < 3*c.Lease.RenewInterval {
		warnings = append(warnings, fmt.Sprintf(
			"lease TTL %s is less than three renew intervals (%s); a single slow renewal may expire entries",
			c.Lease.TTL, c.Lease.RenewInterval))
	}
	if c.Registry.Backend == RegistryMemory {
		warnings = append(warnings, "memory registry selected; registrations are not visible outside this process")
	}
	return warnings
}

// DockerSocketPath returns the unix socket to watch for runtime restarts, or "".
func (c DiscoverConfig) DockerSocketPath() string {
	if c.Docker.SocketPath != "" {
		return c.Docker.SocketPath
	}
	if strings.HasPrefix(c.Docker.Host, "unix://") {
		return strings.TrimPrefix(c.Docker.Host, "unix://")
	}
	return ""
}
