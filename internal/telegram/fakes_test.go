package telegram

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/harun/pdfbot/internal/config"
	"github.com/harun/pdfbot/pkg/commandqueue"
	"github.com/harun/pdfbot/pkg/dispatcher"
)

const testChat int64 = 67890

// sentDocument is a document upload captured by fakeAPI
type sentDocument struct {
	chatID  int64
	name    string
	content string
}

// fakeAPI records outgoing calls instead of talking to Telegram
type fakeAPI struct {
	mu       sync.Mutex
	messages []tgbotapi.MessageConfig
	docs     []sentDocument
	requests []tgbotapi.Chattable
	order    []string
	links    map[string]string
	sendErr  error
	docErr   error
	updates  chan tgbotapi.Update
	stopped  bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		links:   make(map[string]string),
		updates: make(chan tgbotapi.Update, 16),
	}
}

func (f *fakeAPI) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch v := c.(type) {
	case tgbotapi.MessageConfig:
		if f.sendErr != nil {
			return tgbotapi.Message{}, f.sendErr
		}
		f.messages = append(f.messages, v)
		f.order = append(f.order, "text:"+v.Text)
	case tgbotapi.DocumentConfig:
		if f.docErr != nil {
			return tgbotapi.Message{}, f.docErr
		}
		fr, ok := v.File.(tgbotapi.FileReader)
		if !ok {
			return tgbotapi.Message{}, errors.New("unexpected document source")
		}
		data, err := io.ReadAll(fr.Reader)
		if err != nil {
			return tgbotapi.Message{}, err
		}
		f.docs = append(f.docs, sentDocument{chatID: v.ChatID, name: fr.Name, content: string(data)})
		f.order = append(f.order, "doc:"+fr.Name)
	default:
		f.requests = append(f.requests, c)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetFileDirectURL(fileID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	link, ok := f.links[fileID]
	if !ok {
		return "", errors.New("file not found")
	}
	return link, nil
}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.messages))
	for _, m := range f.messages {
		out = append(out, m.Text)
	}
	return out
}

func (f *fakeAPI) lastMessage(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.messages, "no message sent")
	return f.messages[len(f.messages)-1]
}

// fakeDispatcher records the events routed to it
type fakeDispatcher struct {
	mu      sync.Mutex
	events  []string
	uploads []dispatcher.Upload
	reply   dispatcher.Reply
}

func (d *fakeDispatcher) record(event string) dispatcher.Reply {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return d.reply
}

func (d *fakeDispatcher) SelectOperation(ctx context.Context, conversationID, operationID string) dispatcher.Reply {
	return d.record("select:" + conversationID + ":" + operationID)
}

func (d *fakeDispatcher) ReceiveFile(ctx context.Context, conversationID string, up dispatcher.Upload) dispatcher.Reply {
	d.mu.Lock()
	d.uploads = append(d.uploads, up)
	d.mu.Unlock()
	return d.record("file:" + conversationID + ":" + string(up.Kind))
}

func (d *fakeDispatcher) ReceiveText(ctx context.Context, conversationID, text string) dispatcher.Reply {
	return d.record("text:" + conversationID + ":" + text)
}

func (d *fakeDispatcher) ReceiveFinishSignal(ctx context.Context, conversationID string) dispatcher.Reply {
	return d.record("finish:" + conversationID)
}

func (d *fakeDispatcher) Cancel(ctx context.Context, conversationID string) dispatcher.Reply {
	return d.record("cancel:" + conversationID)
}

func (d *fakeDispatcher) recorded() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.events...)
}

func newTestQueue(t *testing.T) *commandqueue.CommandQueue {
	t.Helper()
	q := commandqueue.New(commandqueue.Options{Logger: zerolog.Nop()})
	t.Cleanup(func() { _ = q.Close() })
	return q
}

func newTestBot(t *testing.T, api *fakeAPI, d Dispatcher, cfg *config.TelegramConfig, opts ...Option) *Bot {
	t.Helper()
	bot, err := NewWithAPI(api, tgbotapi.User{ID: 123456789, UserName: "pdfbot"}, cfg, zerolog.Nop(), d, newTestQueue(t), opts...)
	require.NoError(t, err)
	return bot
}

func textUpdate(id int, userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: id,
		Message: &tgbotapi.Message{
			MessageID: id,
			From:      &tgbotapi.User{ID: userID, UserName: "alice"},
			Chat:      &tgbotapi.Chat{ID: testChat, Type: "private"},
			Text:      text,
		},
	}
}

func commandUpdate(id int, command string) tgbotapi.Update {
	u := textUpdate(id, 1, command)
	u.Message.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(command)}}
	return u
}

func callbackUpdate(id int, data string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: id,
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:   "cb-" + data,
			From: &tgbotapi.User{ID: 1},
			Message: &tgbotapi.Message{
				MessageID: 1,
				Chat:      &tgbotapi.Chat{ID: testChat, Type: "private"},
			},
			Data: data,
		},
	}
}

func documentUpdate(id int, fileID, name string, size int) tgbotapi.Update {
	u := textUpdate(id, 1, "")
	u.Message.Document = &tgbotapi.Document{FileID: fileID, FileName: name, FileSize: size}
	return u
}

func photoUpdate(id int, sizes ...tgbotapi.PhotoSize) tgbotapi.Update {
	u := textUpdate(id, 1, "")
	u.Message.Photo = sizes
	return u
}
