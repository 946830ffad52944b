package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateIntake(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateArchive(); err != nil {
		return err
	}
	if c.Fingerprints.RetentionDays < 0 {
		return errors.New("fingerprints.retention_days must be >= 0")
	}
	if c.Trash.RetentionDays < 0 {
		return errors.New("trash.retention_days must be >= 0")
	}
	return nil
}

func (c *Config) validateLLM() error {
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("llm.provider %q is not supported (use %q or %q)", c.LLM.Provider, ProviderOpenAI, ProviderOllama)
	}
	if c.LLM.MaxTokens < 0 {
		return errors.New("llm.max_tokens must be positive")
	}
	return ensurePositiveMap(map[string]int{
		"llm.timeout_seconds": c.LLM.TimeoutSeconds,
	})
}

func (c *Config) validateQueue() error {
	if c.Queue.TagAttempts < 1 {
		return errors.New("queue.tag_attempts must be >= 1")
	}
	return nil
}

func (c *Config) validateIntake() error {
	if c.Intake.PollIntervalSeconds < minPollIntervalSeconds {
		return fmt.Errorf("intake.poll_interval_seconds must be at least %d", minPollIntervalSeconds)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if strings.TrimSpace(c.Notifications.NtfyTopic) == "" {
		return nil
	}
	return ensurePositiveMap(map[string]int{
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func (c *Config) validateArchive() error {
	if !c.Archive.Enabled {
		return nil
	}
	if c.Archive.Bucket == "" {
		return errors.New("archive.bucket must be set when archive.enabled is true")
	}
	if c.Archive.Region == "" && c.Archive.Endpoint == "" {
		return errors.New("archive.region or archive.endpoint must be set when archive.enabled is true")
	}
	if c.Archive.AgeRecipient != "" && !strings.HasPrefix(c.Archive.AgeRecipient, "age1") {
		return errors.New("archive.age_recipient must be an age X25519 recipient (age1...)")
	}
	return nil
}

// MinPollInterval reports the smallest accepted intake poll interval in seconds.
func MinPollInterval() int {
	return minPollIntervalSeconds
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
