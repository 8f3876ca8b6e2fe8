package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable. Missing Plex tokens are not a
// validation failure: commands that need them report a configuration error when
// they run.
func (c *Config) Validate() error {
	if err := c.validatePlex(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePlex() error {
	for key, value := range map[string]string{
		"plex.self_rss_url":    c.Plex.SelfRSSURL,
		"plex.friends_rss_url": c.Plex.FriendsRSSURL,
		"plex.discover_url":    c.Plex.DiscoverURL,
		"plex.community_url":   c.Plex.CommunityURL,
		"plex.tv_url":          c.Plex.TVURL,
	} {
		if value == "" {
			continue
		}
		parsed, err := url.Parse(value)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", key, value)
		}
	}
	if c.Plex.RequestTimeout <= 0 {
		return errors.New("plex.request_timeout must be positive")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if err := ensurePositiveMap(map[string]int{
		"workflow.poll_interval": c.Workflow.PollInterval,
		"workflow.quiet_period":  c.Workflow.QuietPeriod,
	}); err != nil {
		return err
	}
	if c.Workflow.QuietPeriod < c.Workflow.PollInterval {
		return errors.New("workflow.quiet_period must be at least workflow.poll_interval")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
