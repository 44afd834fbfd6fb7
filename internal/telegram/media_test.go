package telegram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/pdfbot/pkg/dispatcher"
)

func TestUploadFrom_Photo(t *testing.T) {
	bot := newTestBot(t, newFakeAPI(), &fakeDispatcher{}, nil)

	msg := photoUpdate(1,
		tgbotapi.PhotoSize{FileID: "small", Width: 90, Height: 90, FileSize: 1000},
		tgbotapi.PhotoSize{FileID: "large", Width: 1280, Height: 960, FileSize: 90000},
		tgbotapi.PhotoSize{FileID: "medium", Width: 320, Height: 240, FileSize: 9000},
	).Message

	up, ok := bot.uploadFrom(msg)
	require.True(t, ok)
	assert.Equal(t, dispatcher.KindImage, up.Kind)
	assert.Empty(t, up.Name)
	assert.Equal(t, int64(90000), up.Size)
	assert.NotNil(t, up.Fetch)
}

func TestUploadFrom_Document(t *testing.T) {
	bot := newTestBot(t, newFakeAPI(), &fakeDispatcher{}, nil)

	up, ok := bot.uploadFrom(documentUpdate(1, "doc-1", "slides.pptx", 2048).Message)
	require.True(t, ok)
	assert.Equal(t, dispatcher.KindDocument, up.Kind)
	assert.Equal(t, "slides.pptx", up.Name)
	assert.Equal(t, int64(2048), up.Size)
}

func TestUploadFrom_NoMedia(t *testing.T) {
	bot := newTestBot(t, newFakeAPI(), &fakeDispatcher{}, nil)

	_, ok := bot.uploadFrom(textUpdate(1, 1, "hi").Message)
	assert.False(t, ok)
}

func TestLargestPhoto(t *testing.T) {
	sizes := []tgbotapi.PhotoSize{
		{FileID: "b", Width: 800, Height: 600},
		{FileID: "a", Width: 90, Height: 90},
	}
	assert.Equal(t, "b", largestPhoto(sizes).FileID)
}

func TestFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("%PDF-1.7"))
	}))
	defer srv.Close()

	api := newFakeAPI()
	api.links["ok"] = srv.URL + "/file.pdf"
	api.links["missing"] = srv.URL + "/missing"
	bot := newTestBot(t, api, &fakeDispatcher{}, nil, WithHTTPClient(srv.Client()))

	t.Run("downloads body", func(t *testing.T) {
		rc, err := bot.fetcher("ok")(context.Background())
		require.NoError(t, err)
		defer rc.Close()

		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.7", string(data))
	})

	t.Run("bad status", func(t *testing.T) {
		_, err := bot.fetcher("missing")(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
	})

	t.Run("unknown file", func(t *testing.T) {
		_, err := bot.fetcher("nope")(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to get file info")
	})

	t.Run("transport error hides the url", func(t *testing.T) {
		api.links["secret"] = "http://127.0.0.1:1/file/bot123:SECRET/doc.pdf"
		_, err := bot.fetcher("secret")(context.Background())
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "SECRET")
	})
}
