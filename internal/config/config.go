// Package config provides centralized configuration management for the application.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration parameters for the application.
type Config struct {
	Jira  JiraConfig
	Slack SlackConfig

	// MediaDir is the local directory downloaded attachments are
	// staged in before upload to the tracker
	MediaDir string
}

// JiraConfig holds JIRA specific configuration.
type JiraConfig struct {
	BaseURL string
	Email   string
	Token   string

	// ProjectID is the tracker project triage tickets are filed under
	ProjectID string

	// BugTypeID and StoryTypeID are the tracker issue type ids the
	// classifier maps mention text onto
	BugTypeID   string
	StoryTypeID string
}

// SlackConfig holds Slack specific configuration.
type SlackConfig struct {
	// AppToken is the xapp- app-level token used for Socket Mode
	AppToken string

	// BotToken is the xoxb- bot token used for Web API calls
	BotToken string
}

// LoadConfig initializes and loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	// Initialize Viper for environment variables
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Map specific environment variables
	v.BindEnv("jira.url", "JIRA_URL")
	v.BindEnv("jira.email", "JIRA_EMAIL")
	v.BindEnv("jira.key", "JIRA_KEY")
	v.BindEnv("jira.project_id", "JIRA_PROJECT_ID")
	v.BindEnv("jira.bug_type_id", "JIRA_BUG_TYPE_ID")
	v.BindEnv("jira.story_type_id", "JIRA_STORY_TYPE_ID")
	v.BindEnv("slack.app_token", "SLACK_APP_TOKEN")
	v.BindEnv("slack.bot_token", "SLACK_BOT_TOKEN")
	v.BindEnv("media.dir", "MEDIA_DIR")

	// Defaults for the optional tracker identifiers
	v.SetDefault("jira.project_id", "10038")
	v.SetDefault("jira.bug_type_id", "10103")
	v.SetDefault("jira.story_type_id", "10100")
	v.SetDefault("media.dir", "media")

	// Create config structure
	config := &Config{
		Jira: JiraConfig{
			BaseURL:     v.GetString("jira.url"),
			Email:       v.GetString("jira.email"),
			Token:       v.GetString("jira.key"),
			ProjectID:   v.GetString("jira.project_id"),
			BugTypeID:   v.GetString("jira.bug_type_id"),
			StoryTypeID: v.GetString("jira.story_type_id"),
		},
		Slack: SlackConfig{
			AppToken: v.GetString("slack.app_token"),
			BotToken: v.GetString("slack.bot_token"),
		},
		MediaDir: v.GetString("media.dir"),
	}

	// Validate configuration
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// validateConfig ensures that all required configuration values are provided.
// The bot must fail fast at startup rather than run with partial credentials.
func validateConfig(config *Config) error {
	var missingVars []string

	if config.Jira.BaseURL == "" {
		missingVars = append(missingVars, "JIRA_URL")
	}
	if config.Jira.Email == "" {
		missingVars = append(missingVars, "JIRA_EMAIL")
	}
	if config.Jira.Token == "" {
		missingVars = append(missingVars, "JIRA_KEY")
	}
	if config.Slack.AppToken == "" {
		missingVars = append(missingVars, "SLACK_APP_TOKEN")
	}
	if config.Slack.BotToken == "" {
		missingVars = append(missingVars, "SLACK_BOT_TOKEN")
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	return nil
}
