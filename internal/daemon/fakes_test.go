package daemon

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"github.com/harun/pdfbot/internal/config"
	"github.com/harun/pdfbot/internal/logger"
	"github.com/harun/pdfbot/pkg/docops"
)

const testToken = "123456789:AAHdqTcvCH1vGWJxfSeofSAs0K5PALDsaw"

// fakeAPI stands in for the Telegram Bot API
type fakeAPI struct {
	mu       sync.Mutex
	updates  chan tgbotapi.Update
	texts    []string
	docNames []string
	links    map[string]string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		updates: make(chan tgbotapi.Update, 16),
		links:   make(map[string]string),
	}
}

func (f *fakeAPI) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch v := c.(type) {
	case tgbotapi.MessageConfig:
		f.texts = append(f.texts, v.Text)
	case tgbotapi.DocumentConfig:
		if fr, ok := v.File.(tgbotapi.FileReader); ok {
			f.docNames = append(f.docNames, fr.Name)
		}
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
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

func (f *fakeAPI) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

func (f *fakeAPI) sentDocs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.docNames...)
}

// fakeRunner mimics LibreOffice by writing <stem>.pdf into --outdir
type fakeRunner struct{}

func (fakeRunner) LookPath(name string) (string, error) {
	return "/usr/bin/" + name, nil
}

func (fakeRunner) Run(ctx context.Context, cmd docops.Command) (docops.Result, error) {
	var outDir string
	for i, arg := range cmd.Args {
		if arg == "--outdir" && i+1 < len(cmd.Args) {
			outDir = cmd.Args[i+1]
		}
	}
	in := cmd.Args[len(cmd.Args)-1]
	stem := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
	err := os.WriteFile(filepath.Join(outDir, stem+".pdf"), []byte("%PDF-1.7\n"), 0600)
	return docops.Result{}, err
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	tmpDir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.DataDir = tmpDir
	cfg.Storage.WorkDir = filepath.Join(tmpDir, "work")
	cfg.Telegram.BotToken = testToken
	cfg.Admin.Enabled = false
	return cfg
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(logger.Config{
		Level:   "info",
		Console: false,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = log.Close() })
	return log
}

// createTestDaemon creates a daemon on top of a fake Telegram API
func createTestDaemon(t *testing.T, cfg *config.Config, opts ...Option) (*Daemon, *fakeAPI) {
	t.Helper()
	api := newFakeAPI()
	opts = append([]Option{
		WithTelegramAPI(api, tgbotapi.User{ID: 123456789, UserName: "pdfbot", IsBot: true}),
		WithRunner(fakeRunner{}),
	}, opts...)

	d, err := New(cfg, testLogger(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		if d.Status().Running {
			_ = d.Stop()
			return
		}
		_ = d.queue.Close()
		d.teardown()
	})
	return d, api
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func callbackUpdate(id int, chatID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: id,
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:   "cb-" + data,
			From: &tgbotapi.User{ID: chatID},
			Message: &tgbotapi.Message{
				MessageID: id,
				Chat:      &tgbotapi.Chat{ID: chatID, Type: "private"},
			},
			Data: data,
		},
	}
}

func documentUpdate(id int, chatID int64, fileID, name string, size int) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: id,
		Message: &tgbotapi.Message{
			MessageID: id,
			From:      &tgbotapi.User{ID: chatID},
			Chat:      &tgbotapi.Chat{ID: chatID, Type: "private"},
			Date:      int(time.Now().Unix()),
			Document: &tgbotapi.Document{
				FileID:   fileID,
				FileName: name,
				FileSize: size,
			},
		},
	}
}
