// Package bot runs the Slack Socket Mode event loop and dispatches each
// app-mention to its own pipeline run.
package bot

import (
	"context"

	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/tmtriage/triagebot/internal/logging"
	slackclient "github.com/tmtriage/triagebot/internal/slack"
	"github.com/tmtriage/triagebot/pkg/models"
)

// Handler processes one mention event end to end.
type Handler interface {
	Handle(ctx context.Context, event models.MentionEvent) error
}

// Bot consumes Socket Mode events and hands mentions to the pipeline.
type Bot struct {
	socket  *socketmode.Client
	handler Handler
}

// New creates a Bot over the given Slack client and mention handler.
func New(client *slackclient.Client, handler Handler) *Bot {
	return &Bot{
		socket:  socketmode.New(client.Raw()),
		handler: handler,
	}
}

// Run starts the event loop. It blocks until ctx is canceled.
func (b *Bot) Run(ctx context.Context) error {
	go func() {
		for evt := range b.socket.Events {
			b.handleEvent(ctx, evt)
		}
	}()

	return b.socket.RunContext(ctx)
}

func (b *Bot) handleEvent(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		logging.Info("connecting to slack socket mode")

	case socketmode.EventTypeConnected:
		logging.Info("connected to slack socket mode")

	case socketmode.EventTypeConnectionError:
		logging.Error("slack socket mode connection error", "error", evt.Data)

	case socketmode.EventTypeEventsAPI:
		apiEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		b.socket.Ack(*evt.Request)
		b.handleEventsAPI(ctx, apiEvent)
	}
}

func (b *Bot) handleEventsAPI(ctx context.Context, apiEvent slackevents.EventsAPIEvent) {
	if apiEvent.Type != slackevents.CallbackEvent {
		return
	}

	switch ev := apiEvent.InnerEvent.Data.(type) {
	case *slackevents.AppMentionEvent:
		event := mentionEvent(ev)
		// One goroutine per mention: a slow external call in one run
		// must not delay unrelated events, and a fatal error in one
		// run must not affect any other.
		go func() {
			if err := b.handler.Handle(ctx, event); err != nil {
				logging.Error("mention handling failed",
					"channel", event.ChannelID,
					"timestamp", event.Timestamp,
					"thread", event.ThreadTimestamp,
					"error", err)
			}
		}()
	}
}

// mentionEvent converts a Slack app-mention payload to the pipeline's
// event model.
func mentionEvent(ev *slackevents.AppMentionEvent) models.MentionEvent {
	return models.MentionEvent{
		ActorID:         ev.User,
		Text:            ev.Text,
		ChannelID:       ev.Channel,
		Timestamp:       ev.TimeStamp,
		ThreadTimestamp: ev.ThreadTimeStamp,
	}
}
