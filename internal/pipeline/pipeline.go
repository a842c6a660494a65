// Package pipeline orchestrates the mention-to-ticket flow: one linear
// sequence per mention event, turning a Slack thread's root message into
// a JIRA ticket and replying in-thread with the ticket link.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmtriage/triagebot/internal/logging"
	"github.com/tmtriage/triagebot/pkg/models"
)

// ticketLabels identify bot-created triage tickets in the tracker.
var ticketLabels = []string{"TMTriage", "bot"}

// ThreadResolver fetches a thread's root message context.
type ThreadResolver interface {
	ThreadRoot(ctx context.Context, channelID, threadTimestamp, fallbackAuthor string) (*models.ThreadContext, error)
}

// Notifier posts the acknowledgement reaction and the threaded reply.
type Notifier interface {
	AddReaction(ctx context.Context, channelID, timestamp string) error
	PostThreadReply(ctx context.Context, channelID, threadTimestamp, text string) error
}

// Transfer relays attachments from the thread root to the created ticket.
type Transfer interface {
	DownloadAll(ctx context.Context, threadTimestamp string, refs []models.RootAttachmentRef) []models.DownloadedAttachment
	UploadAll(ctx context.Context, ticketKey string, files []models.DownloadedAttachment)
}

// TicketCreator creates a ticket in the issue tracker.
type TicketCreator interface {
	CreateTicket(ctx context.Context, request models.TicketRequest) (*models.Ticket, error)
}

// Classifier maps mention text to a tracker issue type.
type Classifier interface {
	Classify(text string) models.Classification
}

// Pipeline runs the mention-to-ticket sequence. It holds no mutable
// state; concurrent runs over different events are independent.
type Pipeline struct {
	resolver   ThreadResolver
	notifier   Notifier
	transfer   Transfer
	tickets    TicketCreator
	classifier Classifier
	projectID  string
	botUserID  string
}

// New creates a Pipeline over the given collaborators.
func New(resolver ThreadResolver, notifier Notifier, transfer Transfer, tickets TicketCreator, classifier Classifier, projectID, botUserID string) *Pipeline {
	return &Pipeline{
		resolver:   resolver,
		notifier:   notifier,
		transfer:   transfer,
		tickets:    tickets,
		classifier: classifier,
		projectID:  projectID,
		botUserID:  botUserID,
	}
}

// Handle processes one mention event. Mentions outside a thread are
// acknowledged and otherwise ignored. A returned error is fatal for this
// event only; per-file attachment failures are logged inside the transfer
// and never surface here.
func (p *Pipeline) Handle(ctx context.Context, event models.MentionEvent) error {
	if err := validate(event); err != nil {
		return err
	}

	logging.Info("bot mentioned",
		"actor", event.ActorID,
		"channel", event.ChannelID,
		"text", event.Text)

	// Best-effort receipt acknowledgement, before thread resolution.
	if err := p.notifier.AddReaction(ctx, event.ChannelID, event.Timestamp); err != nil {
		logging.Warn("failed to acknowledge mention",
			"channel", event.ChannelID,
			"timestamp", event.Timestamp,
			"error", err)
	}

	if !event.InThread() {
		logging.Debug("mention outside a thread, nothing to track",
			"channel", event.ChannelID, "timestamp", event.Timestamp)
		return nil
	}

	thread, err := p.resolver.ThreadRoot(ctx, event.ChannelID, event.ThreadTimestamp, event.ActorID)
	if err != nil {
		return fmt.Errorf("failed to resolve thread %s: %w", event.ThreadTimestamp, err)
	}

	// The stripped mention text is both the classification input and the
	// ticket summary.
	summary := p.stripMention(event.Text)
	classification := p.classifier.Classify(summary)

	downloaded := p.transfer.DownloadAll(ctx, event.ThreadTimestamp, thread.Attachments)

	request := models.TicketRequest{
		Summary: summary,
		// Double the paragraph breaks so the root text stays readable
		// in the tracker's rich-text renderer.
		Description:    strings.ReplaceAll(thread.RootText, "\n", "\n\n"),
		ProjectID:      p.projectID,
		Classification: classification,
		Labels:         ticketLabels,
	}

	ticket, err := p.tickets.CreateTicket(ctx, request)
	if err != nil {
		return fmt.Errorf("failed to create ticket for thread %s: %w", event.ThreadTimestamp, err)
	}

	logging.Info("ticket created",
		"key", ticket.Key,
		"type", classification.Name,
		"thread", event.ThreadTimestamp)

	p.transfer.UploadAll(ctx, ticket.Key, downloaded)

	reply := fmt.Sprintf("Hi there, <@%s>!\nThis issue is being tracked at %s",
		thread.RootAuthorID, ticket.BrowseURL)
	if err := p.notifier.PostThreadReply(ctx, event.ChannelID, event.ThreadTimestamp, reply); err != nil {
		// The ticket already exists but the user was never told.
		return fmt.Errorf("ticket %s created but confirmation reply failed: %w", ticket.Key, err)
	}

	return nil
}

// stripMention removes the bot's own mention token from the event text.
func (p *Pipeline) stripMention(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, "<@"+p.botUserID+">", ""))
}

// validate rejects events missing the fields every run depends on.
func validate(event models.MentionEvent) error {
	var missing []string
	if event.ActorID == "" {
		missing = append(missing, "actor")
	}
	if event.Text == "" {
		missing = append(missing, "text")
	}
	if event.ChannelID == "" {
		missing = append(missing, "channel")
	}
	if event.Timestamp == "" {
		missing = append(missing, "timestamp")
	}
	if len(missing) > 0 {
		return fmt.Errorf("invalid mention event, missing fields: %v", missing)
	}
	return nil
}
