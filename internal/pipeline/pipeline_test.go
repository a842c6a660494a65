package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmtriage/triagebot/internal/classify"
	"github.com/tmtriage/triagebot/pkg/models"
)

type fakeResolver struct {
	thread *models.ThreadContext
	err    error
	calls  int
}

func (f *fakeResolver) ThreadRoot(ctx context.Context, channelID, threadTimestamp, fallbackAuthor string) (*models.ThreadContext, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.thread, nil
}

type fakeNotifier struct {
	reactionErr    error
	replyErr       error
	reactions      []string
	replies        []string
	replyChannels  []string
	replyThreadTSs []string
}

func (f *fakeNotifier) AddReaction(ctx context.Context, channelID, timestamp string) error {
	f.reactions = append(f.reactions, channelID+"/"+timestamp)
	return f.reactionErr
}

func (f *fakeNotifier) PostThreadReply(ctx context.Context, channelID, threadTimestamp, text string) error {
	if f.replyErr != nil {
		return f.replyErr
	}
	f.replies = append(f.replies, text)
	f.replyChannels = append(f.replyChannels, channelID)
	f.replyThreadTSs = append(f.replyThreadTSs, threadTimestamp)
	return nil
}

type fakeTransfer struct {
	downloaded      []models.DownloadedAttachment
	downloadedRefs  []models.RootAttachmentRef
	uploadedTickets []string
	uploadedFiles   []models.DownloadedAttachment
}

func (f *fakeTransfer) DownloadAll(ctx context.Context, threadTimestamp string, refs []models.RootAttachmentRef) []models.DownloadedAttachment {
	f.downloadedRefs = append(f.downloadedRefs, refs...)
	return f.downloaded
}

func (f *fakeTransfer) UploadAll(ctx context.Context, ticketKey string, files []models.DownloadedAttachment) {
	f.uploadedTickets = append(f.uploadedTickets, ticketKey)
	f.uploadedFiles = append(f.uploadedFiles, files...)
}

type fakeTickets struct {
	ticket   *models.Ticket
	err      error
	requests []models.TicketRequest
}

func (f *fakeTickets) CreateTicket(ctx context.Context, request models.TicketRequest) (*models.Ticket, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.requests = append(f.requests, request)
	return f.ticket, nil
}

func newTestPipeline(resolver *fakeResolver, notifier *fakeNotifier, transfer *fakeTransfer, tickets *fakeTickets) *Pipeline {
	classifier := classify.NewClassifier("10103", "10100")
	return New(resolver, notifier, transfer, tickets, classifier, "10038", "U07AANEMT6E")
}

func validEvent() models.MentionEvent {
	return models.MentionEvent{
		ActorID:         "U111",
		Text:            "<@U07AANEMT6E> bug login fails",
		ChannelID:       "C123",
		Timestamp:       "200.2",
		ThreadTimestamp: "100.1",
	}
}

func TestHandleEndToEnd(t *testing.T) {
	resolver := &fakeResolver{thread: &models.ThreadContext{
		ThreadTimestamp: "100.1",
		RootText:        "Users cannot log in after deploy",
		RootAuthorID:    "U222",
	}}
	notifier := &fakeNotifier{}
	transfer := &fakeTransfer{}
	tickets := &fakeTickets{ticket: &models.Ticket{
		Key:       "DWC-42",
		BrowseURL: "https://example.atlassian.net/browse/DWC-42",
	}}

	p := newTestPipeline(resolver, notifier, transfer, tickets)
	err := p.Handle(context.Background(), validEvent())
	require.NoError(t, err)

	// Acknowledged the mention message itself.
	assert.Equal(t, []string{"C123/200.2"}, notifier.reactions)

	// Created exactly one ticket with the stripped mention text as
	// summary and the bug type id.
	require.Len(t, tickets.requests, 1)
	request := tickets.requests[0]
	assert.Equal(t, "bug login fails", request.Summary)
	assert.Contains(t, request.Description, "Users cannot log in after deploy")
	assert.Equal(t, "10038", request.ProjectID)
	assert.Equal(t, "10103", request.Classification.TypeID)
	assert.Equal(t, []string{"TMTriage", "bot"}, request.Labels)

	// No attachments on the root message, so nothing was relayed.
	assert.Empty(t, transfer.downloadedRefs)
	assert.Empty(t, transfer.uploadedFiles)

	// Replied in the original thread, addressing the root author with
	// the browse link.
	require.Len(t, notifier.replies, 1)
	assert.Contains(t, notifier.replies[0], "https://example.atlassian.net/browse/DWC-42")
	assert.Contains(t, notifier.replies[0], "<@U222>")
	assert.Equal(t, "C123", notifier.replyChannels[0])
	assert.Equal(t, "100.1", notifier.replyThreadTSs[0])
}

func TestHandleMentionOutsideThread(t *testing.T) {
	resolver := &fakeResolver{}
	notifier := &fakeNotifier{}
	transfer := &fakeTransfer{}
	tickets := &fakeTickets{}

	event := validEvent()
	event.ThreadTimestamp = ""

	p := newTestPipeline(resolver, notifier, transfer, tickets)
	err := p.Handle(context.Background(), event)
	require.NoError(t, err)

	// Acknowledged, but no thread fetch, ticket, or reply.
	assert.Len(t, notifier.reactions, 1)
	assert.Zero(t, resolver.calls)
	assert.Empty(t, tickets.requests)
	assert.Empty(t, notifier.replies)
}

func TestHandleValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.MentionEvent)
	}{
		{name: "Missing actor", mutate: func(e *models.MentionEvent) { e.ActorID = "" }},
		{name: "Missing text", mutate: func(e *models.MentionEvent) { e.Text = "" }},
		{name: "Missing channel", mutate: func(e *models.MentionEvent) { e.ChannelID = "" }},
		{name: "Missing timestamp", mutate: func(e *models.MentionEvent) { e.Timestamp = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &fakeNotifier{}
			tickets := &fakeTickets{}
			p := newTestPipeline(&fakeResolver{}, notifier, &fakeTransfer{}, tickets)

			event := validEvent()
			tt.mutate(&event)

			err := p.Handle(context.Background(), event)
			assert.Error(t, err)

			// Validation fails before any side effect.
			assert.Empty(t, notifier.reactions)
			assert.Empty(t, tickets.requests)
		})
	}
}

func TestHandleReactionFailureIsNotFatal(t *testing.T) {
	resolver := &fakeResolver{thread: &models.ThreadContext{
		ThreadTimestamp: "100.1",
		RootText:        "root",
		RootAuthorID:    "U222",
	}}
	notifier := &fakeNotifier{reactionErr: fmt.Errorf("rate limited")}
	tickets := &fakeTickets{ticket: &models.Ticket{Key: "DWC-1", BrowseURL: "https://example.atlassian.net/browse/DWC-1"}}

	p := newTestPipeline(resolver, notifier, &fakeTransfer{}, tickets)
	err := p.Handle(context.Background(), validEvent())
	require.NoError(t, err)
	assert.Len(t, tickets.requests, 1)
}

func TestHandleThreadFetchFailureIsFatal(t *testing.T) {
	resolver := &fakeResolver{err: fmt.Errorf("connection reset")}
	notifier := &fakeNotifier{}
	tickets := &fakeTickets{}

	p := newTestPipeline(resolver, notifier, &fakeTransfer{}, tickets)
	err := p.Handle(context.Background(), validEvent())
	assert.Error(t, err)
	assert.Empty(t, tickets.requests)
	assert.Empty(t, notifier.replies)
}

func TestHandleCreateFailureSendsNoReply(t *testing.T) {
	resolver := &fakeResolver{thread: &models.ThreadContext{
		ThreadTimestamp: "100.1",
		RootText:        "root",
		RootAuthorID:    "U222",
	}}
	notifier := &fakeNotifier{}
	transfer := &fakeTransfer{}
	tickets := &fakeTickets{err: fmt.Errorf("status 400: issuetype is required")}

	p := newTestPipeline(resolver, notifier, transfer, tickets)
	err := p.Handle(context.Background(), validEvent())
	assert.Error(t, err)
	assert.Empty(t, notifier.replies)
	assert.Empty(t, transfer.uploadedTickets)
}

func TestHandleReplyFailureAfterTicketCreation(t *testing.T) {
	resolver := &fakeResolver{thread: &models.ThreadContext{
		ThreadTimestamp: "100.1",
		RootText:        "root",
		RootAuthorID:    "U222",
	}}
	notifier := &fakeNotifier{replyErr: fmt.Errorf("channel archived")}
	transfer := &fakeTransfer{}
	tickets := &fakeTickets{ticket: &models.Ticket{Key: "DWC-9", BrowseURL: "https://example.atlassian.net/browse/DWC-9"}}

	p := newTestPipeline(resolver, notifier, transfer, tickets)
	err := p.Handle(context.Background(), validEvent())

	// The ticket exists but the user was never told; the error names it.
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DWC-9")
	assert.Len(t, tickets.requests, 1)

	// Attachments were already relayed before the reply attempt.
	assert.Equal(t, []string{"DWC-9"}, transfer.uploadedTickets)
}

func TestHandleRelaysDownloadedAttachments(t *testing.T) {
	resolver := &fakeResolver{thread: &models.ThreadContext{
		ThreadTimestamp: "100.1",
		RootText:        "root",
		RootAuthorID:    "U222",
		Attachments: []models.RootAttachmentRef{
			{DownloadURL: "https://files.example.com/a", FileName: "a.png"},
		},
	}}
	notifier := &fakeNotifier{}
	transfer := &fakeTransfer{downloaded: []models.DownloadedAttachment{
		{LocalPath: "media/100_1-a.png", OriginalFileName: "a.png"},
	}}
	tickets := &fakeTickets{ticket: &models.Ticket{Key: "DWC-5", BrowseURL: "https://example.atlassian.net/browse/DWC-5"}}

	p := newTestPipeline(resolver, notifier, transfer, tickets)
	err := p.Handle(context.Background(), validEvent())
	require.NoError(t, err)

	require.Len(t, transfer.downloadedRefs, 1)
	assert.Equal(t, "a.png", transfer.downloadedRefs[0].FileName)
	assert.Equal(t, []string{"DWC-5"}, transfer.uploadedTickets)
	require.Len(t, transfer.uploadedFiles, 1)
	assert.Equal(t, "a.png", transfer.uploadedFiles[0].OriginalFileName)
}

func TestHandleDoublesParagraphBreaks(t *testing.T) {
	resolver := &fakeResolver{thread: &models.ThreadContext{
		ThreadTimestamp: "100.1",
		RootText:        "first line\nsecond line",
		RootAuthorID:    "U222",
	}}
	tickets := &fakeTickets{ticket: &models.Ticket{Key: "DWC-7", BrowseURL: "https://example.atlassian.net/browse/DWC-7"}}

	p := newTestPipeline(resolver, &fakeNotifier{}, &fakeTransfer{}, tickets)
	err := p.Handle(context.Background(), validEvent())
	require.NoError(t, err)

	require.Len(t, tickets.requests, 1)
	assert.Equal(t, "first line\n\nsecond line", tickets.requests[0].Description)
}

func TestHandleStoryClassification(t *testing.T) {
	resolver := &fakeResolver{thread: &models.ThreadContext{
		ThreadTimestamp: "100.1",
		RootText:        "root",
		RootAuthorID:    "U222",
	}}
	tickets := &fakeTickets{ticket: &models.Ticket{Key: "DWC-8", BrowseURL: "https://example.atlassian.net/browse/DWC-8"}}

	event := validEvent()
	event.Text = "<@U07AANEMT6E> please track this request"

	p := newTestPipeline(resolver, &fakeNotifier{}, &fakeTransfer{}, tickets)
	err := p.Handle(context.Background(), event)
	require.NoError(t, err)

	require.Len(t, tickets.requests, 1)
	assert.Equal(t, "please track this request", tickets.requests[0].Summary)
	assert.Equal(t, "10100", tickets.requests[0].Classification.TypeID)
}

// Re-delivering the same event creates a second ticket: runs are
// independent and nothing deduplicates by thread.
func TestHandleIsNotIdempotent(t *testing.T) {
	resolver := &fakeResolver{thread: &models.ThreadContext{
		ThreadTimestamp: "100.1",
		RootText:        "root",
		RootAuthorID:    "U222",
	}}
	tickets := &fakeTickets{ticket: &models.Ticket{Key: "DWC-10", BrowseURL: "https://example.atlassian.net/browse/DWC-10"}}

	p := newTestPipeline(resolver, &fakeNotifier{}, &fakeTransfer{}, tickets)
	require.NoError(t, p.Handle(context.Background(), validEvent()))
	require.NoError(t, p.Handle(context.Background(), validEvent()))

	assert.Len(t, tickets.requests, 2)
}
