// Package slack provides functionality for interacting with the Slack API.
package slack

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/tmtriage/triagebot/internal/config"
	"github.com/tmtriage/triagebot/internal/logging"
	"github.com/tmtriage/triagebot/pkg/models"
)

// ackReaction is the fixed reaction posted to acknowledge a mention.
const ackReaction = "thumbsup"

// api is the subset of the slack-go client this package uses. Narrowing
// the surface keeps the wrapper testable with a fake backend.
type api interface {
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
	GetConversationRepliesContext(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error)
	AddReactionContext(ctx context.Context, name string, item slack.ItemRef) error
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	GetFileContext(ctx context.Context, downloadURL string, writer io.Writer) error
}

// Client encapsulates the Slack API client.
type Client struct {
	api       api
	raw       *slack.Client
	botUserID string
}

// NewClient creates a new Slack API client from the configured tokens,
// authenticates against the API, and discovers the bot's own user id. It
// returns the configured client or an error if initialization fails.
func NewClient(cfg config.SlackConfig) (*Client, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("slack bot token is required")
	}
	if cfg.AppToken == "" {
		return nil, fmt.Errorf("slack app token is required for socket mode")
	}
	if !strings.HasPrefix(cfg.AppToken, "xapp-") {
		return nil, fmt.Errorf("slack app token must start with xapp-")
	}

	raw := slack.New(
		cfg.BotToken,
		slack.OptionAppLevelToken(cfg.AppToken),
	)

	// Test the tokens and learn our own identity, so the pipeline can
	// strip the bot's mention token from event text.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	auth, err := raw.AuthTestContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("error testing slack token: %w", err)
	}

	logging.Info("slack authentication successful",
		"bot_user_id", auth.UserID,
		"team", auth.Team,
		"bot_token", logging.MaskSensitive(cfg.BotToken))

	return &Client{
		api:       raw,
		raw:       raw,
		botUserID: auth.UserID,
	}, nil
}

// Raw returns the underlying slack-go client for transports that need it.
func (c *Client) Raw() *slack.Client {
	return c.raw
}

// BotUserID returns the bot's own Slack user id, discovered at startup.
func (c *Client) BotUserID() string {
	return c.botUserID
}

// ThreadRoot fetches the replies under the given thread timestamp and
// returns the thread context derived from the first (root) message. The
// root author falls back to fallbackAuthor when the root message carries
// no user field. A transport error is fatal for the calling run.
func (c *Client) ThreadRoot(ctx context.Context, channelID, threadTimestamp, fallbackAuthor string) (*models.ThreadContext, error) {
	params := &slack.GetConversationRepliesParameters{
		ChannelID: channelID,
		Timestamp: threadTimestamp,
	}

	messages, _, _, err := c.api.GetConversationRepliesContext(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch thread replies: %w", err)
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("thread %s has no messages", threadTimestamp)
	}

	root := messages[0]

	author := root.User
	if author == "" {
		author = fallbackAuthor
	}

	var attachments []models.RootAttachmentRef
	for _, file := range root.Files {
		if file.URLPrivateDownload == "" {
			logging.Debug("root message file has no download url, skipping",
				"thread", threadTimestamp, "file", file.Name)
			continue
		}
		attachments = append(attachments, models.RootAttachmentRef{
			DownloadURL: file.URLPrivateDownload,
			FileName:    file.Name,
		})
	}

	return &models.ThreadContext{
		ThreadTimestamp: threadTimestamp,
		RootText:        root.Text,
		RootAuthorID:    author,
		Attachments:     attachments,
	}, nil
}

// AddReaction posts the acknowledgement reaction to the given message.
// Callers treat a failure as best-effort.
func (c *Client) AddReaction(ctx context.Context, channelID, timestamp string) error {
	if err := c.api.AddReactionContext(ctx, ackReaction, slack.NewRefToMessage(channelID, timestamp)); err != nil {
		return fmt.Errorf("failed to add reaction: %w", err)
	}
	return nil
}

// PostThreadReply posts a message into the given thread.
func (c *Client) PostThreadReply(ctx context.Context, channelID, threadTimestamp, text string) error {
	_, _, err := c.api.PostMessageContext(ctx, channelID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionTS(threadTimestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to post thread reply: %w", err)
	}
	return nil
}

// DownloadFile streams a private Slack file into w, authenticating with
// the bot token.
func (c *Client) DownloadFile(ctx context.Context, downloadURL string, w io.Writer) error {
	if err := c.api.GetFileContext(ctx, downloadURL, w); err != nil {
		return fmt.Errorf("failed to download file: %w", err)
	}
	return nil
}
