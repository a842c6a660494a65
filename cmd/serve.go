package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tmtriage/triagebot/internal/attachments"
	"github.com/tmtriage/triagebot/internal/bot"
	"github.com/tmtriage/triagebot/internal/classify"
	"github.com/tmtriage/triagebot/internal/config"
	"github.com/tmtriage/triagebot/internal/jira"
	"github.com/tmtriage/triagebot/internal/logging"
	"github.com/tmtriage/triagebot/internal/pipeline"
	slackclient "github.com/tmtriage/triagebot/internal/slack"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Slack mention listener",
	Long: `This command connects to Slack over Socket Mode and handles app
mentions until interrupted. Each mention inside a thread is converted into
a JIRA ticket with the thread root as description.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		slackClient, err := slackclient.NewClient(cfg.Slack)
		if err != nil {
			return fmt.Errorf("failed to initialize slack client: %w", err)
		}

		jiraClient, err := jira.NewClient(cfg.Jira)
		if err != nil {
			return fmt.Errorf("failed to initialize jira client: %w", err)
		}

		transfer, err := attachments.NewTransfer(slackClient, jiraClient, cfg.MediaDir)
		if err != nil {
			return fmt.Errorf("failed to initialize attachment transfer: %w", err)
		}

		classifier := classify.NewClassifier(cfg.Jira.BugTypeID, cfg.Jira.StoryTypeID)

		p := pipeline.New(
			slackClient,
			slackClient,
			transfer,
			jiraClient,
			classifier,
			cfg.Jira.ProjectID,
			slackClient.BotUserID(),
		)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logging.Info("starting mention listener",
			"media_dir", cfg.MediaDir,
			"project_id", cfg.Jira.ProjectID)

		return bot.New(slackClient, p).Run(ctx)
	},
}
