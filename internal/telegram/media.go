package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/harun/pdfbot/pkg/dispatcher"
)

// uploadFrom describes the file carried by msg. Photos are images and use
// their largest size; anything sent as a file is a document.
func (b *Bot) uploadFrom(msg *tgbotapi.Message) (dispatcher.Upload, bool) {
	switch {
	case len(msg.Photo) > 0:
		photo := largestPhoto(msg.Photo)
		return dispatcher.Upload{
			Kind:  dispatcher.KindImage,
			Size:  int64(photo.FileSize),
			Fetch: b.fetcher(photo.FileID),
		}, true

	case msg.Document != nil:
		return dispatcher.Upload{
			Kind:  dispatcher.KindDocument,
			Name:  msg.Document.FileName,
			Size:  int64(msg.Document.FileSize),
			Fetch: b.fetcher(msg.Document.FileID),
		}, true
	}

	return dispatcher.Upload{}, false
}

// largestPhoto picks the biggest rendition Telegram offers
func largestPhoto(sizes []tgbotapi.PhotoSize) tgbotapi.PhotoSize {
	best := sizes[len(sizes)-1]
	for _, s := range sizes {
		if s.Width*s.Height > best.Width*best.Height {
			best = s
		}
	}
	return best
}

// fetcher returns a download function for fileID. The direct URL embeds
// the bot token, so transport errors are unwrapped before being returned.
func (b *Bot) fetcher(fileID string) func(ctx context.Context) (io.ReadCloser, error) {
	return func(ctx context.Context) (io.ReadCloser, error) {
		link, err := b.api.GetFileDirectURL(fileID)
		if err != nil {
			return nil, fmt.Errorf("failed to get file info: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build download request")
		}

		resp, err := b.client.Do(req)
		if err != nil {
			var urlErr *url.Error
			if errors.As(err, &urlErr) {
				err = urlErr.Err
			}
			return nil, fmt.Errorf("failed to download file: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("download failed with status: %d", resp.StatusCode)
		}

		b.logger.Debug().
			Str("file_id", fileID).
			Int64("content_length", resp.ContentLength).
			Msg("Downloading file")

		return resp.Body, nil
	}
}
