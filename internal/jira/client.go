// Package jira provides functionality for interacting with the JIRA API.
//
// Ticket creation targets the v3 REST API so descriptions can be submitted
// in Atlassian Document Format; the go-jira library only speaks the v2
// endpoints natively, so this client keeps the library for authentication
// and request plumbing but builds the v3 paths itself.
package jira

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	jira "github.com/andygrunwald/go-jira"

	"github.com/tmtriage/triagebot/internal/config"
	"github.com/tmtriage/triagebot/internal/logging"
	"github.com/tmtriage/triagebot/pkg/models"
)

// Client handles interactions with the JIRA API.
type Client struct {
	client     *jira.Client
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new JIRA client authenticated with the configured
// account email and API token.
func NewClient(cfg config.JiraConfig) (*Client, error) {
	if cfg.BaseURL == "" || cfg.Email == "" || cfg.Token == "" {
		return nil, fmt.Errorf("jira base url, email and token are required")
	}

	// Create JIRA authentication transport
	tp := jira.BasicAuthTransport{
		Username: cfg.Email,
		Password: cfg.Token,
	}
	httpClient := tp.Client()

	client, err := jira.NewClient(httpClient, cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create jira client: %w", err)
	}

	logging.Info("jira client configured",
		"base_url", cfg.BaseURL,
		"email", cfg.Email,
		"token", logging.MaskSensitive(cfg.Token))

	return &Client{
		client:     client,
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
	}, nil
}

// adfText, adfParagraph and adfDocument model the subset of Atlassian
// Document Format used here: a document of plain-text paragraphs.
type adfText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type adfParagraph struct {
	Type    string    `json:"type"`
	Content []adfText `json:"content"`
}

type adfDocument struct {
	Type    string         `json:"type"`
	Version int            `json:"version"`
	Content []adfParagraph `json:"content"`
}

// paragraphDocument wraps the plain description text as a single-paragraph
// ADF document.
func paragraphDocument(text string) adfDocument {
	return adfDocument{
		Type:    "doc",
		Version: 1,
		Content: []adfParagraph{
			{
				Type:    "paragraph",
				Content: []adfText{{Type: "text", Text: text}},
			},
		},
	}
}

type idRef struct {
	ID string `json:"id"`
}

type issueFields struct {
	Summary     string      `json:"summary"`
	Description adfDocument `json:"description"`
	Project     idRef       `json:"project"`
	IssueType   idRef       `json:"issuetype"`
	Labels      []string    `json:"labels"`
}

type createIssueRequest struct {
	Fields issueFields `json:"fields"`
}

type createIssueResponse struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// CreateTicket creates a JIRA ticket from the given request. Any non-2xx
// response is returned as an error carrying the response body; no retry is
// attempted.
func (c *Client) CreateTicket(ctx context.Context, request models.TicketRequest) (*models.Ticket, error) {
	if c.client == nil {
		return nil, fmt.Errorf("jira client not initialized")
	}

	payload := createIssueRequest{
		Fields: issueFields{
			Summary:     request.Summary,
			Description: paragraphDocument(request.Description),
			Project:     idRef{ID: request.ProjectID},
			IssueType:   idRef{ID: request.Classification.TypeID},
			Labels:      request.Labels,
		},
	}

	req, err := c.client.NewRequestWithContext(ctx, http.MethodPost, "rest/api/3/issue", payload)
	if err != nil {
		return nil, fmt.Errorf("failed to build create request: %w", err)
	}

	var created createIssueResponse
	resp, err := c.client.Do(req, &created)
	if err != nil {
		return nil, fmt.Errorf("failed to create jira ticket: %w", jira.NewJiraError(resp, err))
	}

	logging.Info("jira ticket created",
		"key", created.Key,
		"project_id", request.ProjectID,
		"issue_type_id", request.Classification.TypeID)

	return &models.Ticket{
		Key:       created.Key,
		BrowseURL: fmt.Sprintf("%s/browse/%s", c.baseURL, created.Key),
	}, nil
}

// AttachFile uploads one file to an existing ticket via the v3 attachments
// endpoint. The endpoint rejects requests without the X-Atlassian-Token
// header.
func (c *Client) AttachFile(ctx context.Context, ticketKey, fileName string, content io.Reader) error {
	if c.httpClient == nil {
		return fmt.Errorf("jira client not initialized")
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return fmt.Errorf("failed to build multipart body: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("failed to read attachment content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	url := fmt.Sprintf("%s/rest/api/3/issue/%s/attachments", c.baseURL, ticketKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return fmt.Errorf("failed to build attachment request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Atlassian-Token", "no-check")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload attachment %q: %w", fileName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to upload attachment %q: status %d: %s",
			fileName, resp.StatusCode, string(respBody))
	}

	logging.Info("jira attachment added", "ticket", ticketKey, "file", fileName)
	return nil
}
