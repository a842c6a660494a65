// Package models defines data structures shared across the application.
package models

// MentionEvent represents a single app-mention delivered by the chat
// transport. It is consumed exactly once per pipeline run.
type MentionEvent struct {
	// ActorID is the Slack user id of the person who mentioned the bot
	ActorID string

	// Text is the raw message text, including the bot's mention token
	Text string

	// ChannelID is the channel where the mention occurred
	ChannelID string

	// Timestamp is the mention message's own timestamp
	Timestamp string

	// ThreadTimestamp is set only when the mention occurred inside a
	// reply thread; it identifies the thread's root message
	ThreadTimestamp string
}

// InThread reports whether the mention occurred inside a reply thread.
func (e MentionEvent) InThread() bool {
	return e.ThreadTimestamp != ""
}

// ThreadContext holds everything the pipeline needs from a resolved thread.
type ThreadContext struct {
	// ThreadTimestamp identifies the thread
	ThreadTimestamp string

	// RootText is the text of the first message in the thread
	RootText string

	// RootAuthorID is the author of the root message, falling back to
	// the mentioning user when the root carries no author
	RootAuthorID string

	// Attachments lists the downloadable files on the root message,
	// in the order Slack returned them
	Attachments []RootAttachmentRef
}

// RootAttachmentRef points at a single downloadable file on a thread's
// root message.
type RootAttachmentRef struct {
	DownloadURL string
	FileName    string
}

// Classification maps free-text trigger content to a tracker issue type.
type Classification struct {
	// Name is the human-readable category ("Bug" or "Story")
	Name string

	// TypeID is the tracker-specific issue type id
	TypeID string
}

// DownloadedAttachment is a file fetched from Slack and staged on local
// disk, awaiting upload to the created ticket.
type DownloadedAttachment struct {
	LocalPath        string
	OriginalFileName string
}

// TicketRequest carries everything needed to create one tracker ticket.
// Built once per pipeline run.
type TicketRequest struct {
	// Summary is the ticket title, taken verbatim from the mention text
	Summary string

	// Description is the plain description text; the tracker client
	// wraps it in the tracker's rich-text document format
	Description string

	// ProjectID is the tracker project the ticket is filed under
	ProjectID string

	// Classification selects the tracker issue type
	Classification Classification

	// Labels identify bot-created triage tickets
	Labels []string
}

// Ticket is the durable output of a pipeline run: the created tracker
// issue and the link posted back into the thread.
type Ticket struct {
	// Key is the tracker-assigned identifier (e.g. "DWC-123")
	Key string

	// BrowseURL is the human-facing link to the ticket
	BrowseURL string
}
