// Package attachments relays binary files from Slack messages to JIRA
// tickets, staging them in a local media directory in between. Per-file
// failures on either leg are logged and skipped: a broken attachment must
// never abort ticket creation or the remaining files.
package attachments

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmtriage/triagebot/internal/logging"
	"github.com/tmtriage/triagebot/pkg/models"
)

// downloader fetches an authenticated Slack file into a writer.
type downloader interface {
	DownloadFile(ctx context.Context, downloadURL string, w io.Writer) error
}

// uploader attaches a single file to an existing tracker ticket.
type uploader interface {
	AttachFile(ctx context.Context, ticketKey, fileName string, content io.Reader) error
}

// Transfer moves files from the chat platform to the issue tracker.
type Transfer struct {
	downloader downloader
	uploader   uploader
	mediaDir   string
}

// NewTransfer creates a Transfer staging files under mediaDir, creating
// the directory if it does not exist.
func NewTransfer(d downloader, u uploader, mediaDir string) (*Transfer, error) {
	if err := os.MkdirAll(mediaDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory %q: %w", mediaDir, err)
	}
	return &Transfer{
		downloader: d,
		uploader:   u,
		mediaDir:   mediaDir,
	}, nil
}

// LocalName synthesizes the collision-resistant on-disk name for a file:
// the thread timestamp with its separator normalized, joined to the
// original file name. Distinct threads can therefore never collide on
// identically named files.
func LocalName(threadTimestamp, fileName string) string {
	return strings.ReplaceAll(threadTimestamp, ".", "_") + "-" + fileName
}

// DownloadAll fetches every referenced file into the media directory. A
// failed download is logged and skipped; the remaining files are still
// attempted.
func (t *Transfer) DownloadAll(ctx context.Context, threadTimestamp string, refs []models.RootAttachmentRef) []models.DownloadedAttachment {
	var downloaded []models.DownloadedAttachment
	for _, ref := range refs {
		path, err := t.download(ctx, threadTimestamp, ref)
		if err != nil {
			logging.Warn("skipping attachment download",
				"thread", threadTimestamp,
				"file", ref.FileName,
				"error", err)
			continue
		}
		logging.Info("attachment downloaded", "file", ref.FileName, "path", path)
		downloaded = append(downloaded, models.DownloadedAttachment{
			LocalPath:        path,
			OriginalFileName: ref.FileName,
		})
	}
	return downloaded
}

func (t *Transfer) download(ctx context.Context, threadTimestamp string, ref models.RootAttachmentRef) (string, error) {
	path := filepath.Join(t.mediaDir, LocalName(threadTimestamp, ref.FileName))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create local file: %w", err)
	}

	if err := t.downloader.DownloadFile(ctx, ref.DownloadURL, f); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}

	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close local file: %w", err)
	}
	return path, nil
}

// UploadAll attaches every downloaded file to the ticket. Each upload is
// independent: one file's failure does not prevent the rest. Successfully
// uploaded files are removed from the media directory; files that failed
// to upload are left behind for manual remediation.
func (t *Transfer) UploadAll(ctx context.Context, ticketKey string, files []models.DownloadedAttachment) {
	for _, file := range files {
		if err := t.upload(ctx, ticketKey, file); err != nil {
			logging.Error("failed to upload attachment",
				"ticket", ticketKey,
				"file", file.OriginalFileName,
				"path", file.LocalPath,
				"error", err)
			continue
		}
		if err := os.Remove(file.LocalPath); err != nil {
			logging.Warn("failed to remove staged attachment",
				"path", file.LocalPath, "error", err)
		}
	}
}

func (t *Transfer) upload(ctx context.Context, ticketKey string, file models.DownloadedAttachment) error {
	f, err := os.Open(file.LocalPath)
	if err != nil {
		return fmt.Errorf("failed to open staged file: %w", err)
	}
	defer f.Close()

	return t.uploader.AttachFile(ctx, ticketKey, file.OriginalFileName, f)
}
