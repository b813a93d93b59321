// v2
// internal/circuitbreaker/properties.go
package circuitbreaker

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config holds the circuit breaker tunables.
type Config struct {
	MaxFailures      int           // consecutive failures before opening
	ResetTimeout     time.Duration // wait before probing again
	SuccessesToClose int           // successes required in HalfOpen before closing
}

// DefaultConfig mirrors the values used when no properties are supplied.
func DefaultConfig() Config {
	return Config{MaxFailures: 5, ResetTimeout: 30 * time.Second, SuccessesToClose: 1}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxFailures < 1 {
		c.MaxFailures = d.MaxFailures
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = d.ResetTimeout
	}
	if c.SuccessesToClose < 1 {
		c.SuccessesToClose = d.SuccessesToClose
	}
	return c
}

// ConfigFromProperties reads circuit.* keys from a parsed properties map,
// falling back to DefaultConfig for absent keys.
func ConfigFromProperties(props map[string]string) (Config, error) {
	cfg := DefaultConfig()
	for rawKey, rawVal := range props {
		key := strings.ToLower(strings.TrimSpace(rawKey))
		val := strings.TrimSpace(rawVal)
		if val == "" {
			continue
		}
		switch key {
		case "circuit.maxfailures":
			n, err := strconv.Atoi(val)
			if err != nil {
				return Config{}, fmt.Errorf("invalid %s: %w", rawKey, err)
			}
			cfg.MaxFailures = n
		case "circuit.resetseconds":
			secs, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return Config{}, fmt.Errorf("invalid %s: %w", rawKey, err)
			}
			cfg.ResetTimeout = time.Duration(secs * float64(time.Second))
		case "circuit.successestoclose":
			n, err := strconv.Atoi(val)
			if err != nil {
				return Config{}, fmt.Errorf("invalid %s: %w", rawKey, err)
			}
			cfg.SuccessesToClose = n
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.MaxFailures < 1 {
		return errors.New("MaxFailures must be >= 1")
	}
	if c.ResetTimeout <= 0 {
		return errors.New("ResetTimeout must be > 0")
	}
	if c.SuccessesToClose < 1 {
		return errors.New("SuccessesToClose must be >= 1")
	}
	return nil
}

// PublishPolicy tunes how a guarded publisher retries through its breaker.
// The number of attempts per write is the breaker's MaxFailures.
type PublishPolicy struct {
	Enabled        bool
	AttemptTimeout time.Duration
	Backoff        time.Duration
}

func DefaultPublishPolicy() PublishPolicy {
	return PublishPolicy{Enabled: true, AttemptTimeout: 3 * time.Second, Backoff: 200 * time.Millisecond}
}

// PublishPolicyFromProperties reads the circuit.publish.* keys.
func PublishPolicyFromProperties(props map[string]string) (PublishPolicy, error) {
	p := DefaultPublishPolicy()
	for rawKey, rawVal := range props {
		key := strings.ToLower(strings.TrimSpace(rawKey))
		val := strings.TrimSpace(rawVal)
		if val == "" {
			continue
		}
		switch key {
		case "circuit.publish.enabled":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return PublishPolicy{}, fmt.Errorf("invalid %s: %w", rawKey, err)
			}
			p.Enabled = b
		case "circuit.publish.timeoutms":
			ms, err := strconv.Atoi(val)
			if err != nil || ms < 0 {
				return PublishPolicy{}, fmt.Errorf("invalid %s: %q", rawKey, val)
			}
			p.AttemptTimeout = time.Duration(ms) * time.Millisecond
		case "circuit.publish.backoffms":
			ms, err := strconv.Atoi(val)
			if err != nil || ms < 0 {
				return PublishPolicy{}, fmt.Errorf("invalid %s: %q", rawKey, val)
			}
			p.Backoff = time.Duration(ms) * time.Millisecond
		}
	}
	return p, nil
}
