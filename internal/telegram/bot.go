package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/harun/pdfbot/internal/config"
	"github.com/harun/pdfbot/internal/logger"
	"github.com/harun/pdfbot/internal/metrics"
	"github.com/harun/pdfbot/internal/observability"
	"github.com/harun/pdfbot/pkg/commandqueue"
	"github.com/harun/pdfbot/pkg/dispatcher"
)

// API is the part of tgbotapi.BotAPI the bot uses
type API interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Dispatcher is the conversation core updates are fed into
type Dispatcher interface {
	SelectOperation(ctx context.Context, conversationID, operationID string) dispatcher.Reply
	ReceiveFile(ctx context.Context, conversationID string, up dispatcher.Upload) dispatcher.Reply
	ReceiveText(ctx context.Context, conversationID, text string) dispatcher.Reply
	ReceiveFinishSignal(ctx context.Context, conversationID string) dispatcher.Reply
	Cancel(ctx context.Context, conversationID string) dispatcher.Reply
}

// Queue serializes the updates of one chat
type Queue interface {
	SubmitOnce(ctx context.Context, lane, requestID string, task commandqueue.Task) error
}

// Bot represents a Telegram bot instance
type Bot struct {
	api    API
	self   tgbotapi.User
	config *config.TelegramConfig
	logger zerolog.Logger

	dispatcher Dispatcher
	queue      Queue
	metrics    *metrics.Metrics
	audit      *observability.AuditLogger
	client     *http.Client
	commands   *Commands
	allowed    map[int64]bool

	// State
	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// Option configures a Bot
type Option func(*Bot)

// WithMetrics records Telegram traffic in m
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bot) {
		b.metrics = m
	}
}

// WithAudit records rejected users in a
func WithAudit(a *observability.AuditLogger) Option {
	return func(b *Bot) {
		b.audit = a
	}
}

// WithHTTPClient sets the client used to download uploads
func WithHTTPClient(c *http.Client) Option {
	return func(b *Bot) {
		b.client = c
	}
}

// New authenticates against the Bot API and creates a bot instance
func New(cfg *config.TelegramConfig, log *logger.Logger, d Dispatcher, q Queue, opts ...Option) (*Bot, error) {
	if cfg == nil {
		return nil, fmt.Errorf("telegram config is required")
	}

	if cfg.BotToken == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	bot, err := NewWithAPI(api, api.Self, cfg, log.GetZerolog(), d, q, opts...)
	if err != nil {
		return nil, err
	}

	bot.logger.Info().
		Str("username", api.Self.UserName).
		Int64("id", api.Self.ID).
		Msg("Telegram bot authenticated")

	return bot, nil
}

// NewWithAPI creates a bot on top of an existing API client
func NewWithAPI(api API, self tgbotapi.User, cfg *config.TelegramConfig, log zerolog.Logger, d Dispatcher, q Queue, opts ...Option) (*Bot, error) {
	if api == nil || d == nil || q == nil {
		return nil, fmt.Errorf("api, dispatcher and queue are required")
	}
	if cfg == nil {
		cfg = &config.TelegramConfig{}
	}

	bot := &Bot{
		api:        api,
		self:       self,
		config:     cfg,
		logger:     log.With().Str("component", "telegram").Logger(),
		dispatcher: d,
		queue:      q,
		client:     &http.Client{Timeout: 5 * time.Minute},
		allowed:    make(map[int64]bool, len(cfg.Allowlist)),
		done:       make(chan struct{}),
	}
	for _, id := range cfg.Allowlist {
		bot.allowed[id] = true
	}
	for _, opt := range opts {
		opt(bot)
	}

	bot.commands = NewCommands(bot)
	bot.registerCommands()

	return bot, nil
}

// Start publishes the command list and begins processing updates
func (b *Bot) Start() error {
	if !b.running.CompareAndSwap(false, true) {
		return fmt.Errorf("bot is already running")
	}

	b.logger.Info().Msg("Starting Telegram bot")

	if err := b.commands.Publish(); err != nil {
		b.logger.Warn().Err(err).Msg("Failed to publish bot commands")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.config.PollTimeout
	u.AllowedUpdates = []string{"message", "callback_query"}

	updates := b.api.GetUpdatesChan(u)

	b.wg.Add(1)
	go b.processUpdates(updates)

	b.logger.Info().Msg("Telegram bot started")

	return nil
}

// Stop stops receiving updates. Updates already handed to the queue still
// run; the caller drains the queue.
func (b *Bot) Stop() error {
	if !b.running.CompareAndSwap(true, false) {
		return fmt.Errorf("bot is not running")
	}

	b.logger.Info().Msg("Stopping Telegram bot")

	b.api.StopReceivingUpdates()
	close(b.done)
	b.wg.Wait()

	b.logger.Info().Msg("Telegram bot stopped")

	return nil
}

// processUpdates hands every update to the lane of its chat
func (b *Bot) processUpdates(updates tgbotapi.UpdatesChannel) {
	defer b.wg.Done()

	for {
		select {
		case <-b.done:
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := b.submit(update); err != nil {
				b.logger.Error().
					Err(err).
					Int("update_id", update.UpdateID).
					Msg("Failed to queue update")
			}
		}
	}
}

// submit queues update on the lane of its chat. Redelivered updates are
// dropped by their update id.
func (b *Bot) submit(update tgbotapi.Update) error {
	chat := update.FromChat()
	if chat == nil {
		return nil
	}
	b.metrics.RecordTelegramReceived()

	lane := conversationID(chat.ID)
	err := b.queue.SubmitOnce(context.Background(), lane, strconv.Itoa(update.UpdateID), func(ctx context.Context) error {
		return b.handleUpdate(ctx, update)
	})
	if errors.Is(err, commandqueue.ErrDuplicate) {
		b.logger.Debug().Int("update_id", update.UpdateID).Msg("Duplicate update ignored")
		return nil
	}
	return err
}

// isAllowed reports whether user may talk to the bot
func (b *Bot) isAllowed(user *tgbotapi.User) bool {
	if len(b.allowed) == 0 {
		return true
	}
	return user != nil && b.allowed[user.ID]
}

// send delivers c and records the outcome
func (b *Bot) send(c tgbotapi.Chattable) error {
	if _, err := b.api.Send(c); err != nil {
		b.metrics.RecordTelegramError()
		return err
	}
	b.metrics.RecordTelegramSent()
	return nil
}

// SendMessage sends a text message
func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)

	if err := b.send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	b.logger.Debug().
		Int64("chat_id", chatID).
		Msg("Message sent")

	return nil
}

// Notify sends an interim message to a conversation. It has the shape of
// dispatcher.Notifier.
func (b *Bot) Notify(ctx context.Context, conversation, text string) {
	chatID, err := strconv.ParseInt(conversation, 10, 64)
	if err != nil {
		b.logger.Warn().Str("conversation_id", conversation).Msg("Cannot notify non-Telegram conversation")
		return
	}
	if err := b.SendMessage(chatID, text); err != nil {
		b.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("Failed to send notification")
	}
}

// GetBotInfo returns bot information
func (b *Bot) GetBotInfo() map[string]interface{} {
	return map[string]interface{}{
		"username":  b.self.UserName,
		"id":        b.self.ID,
		"firstName": b.self.FirstName,
		"running":   b.running.Load(),
	}
}

// IsRunning returns whether the bot is running
func (b *Bot) IsRunning() bool {
	return b.running.Load()
}

// ValidateToken validates a bot token by attempting to authenticate
func ValidateToken(token string) error {
	if token == "" {
		return fmt.Errorf("bot token is empty")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return fmt.Errorf("invalid bot token: %w", err)
	}

	if api.Self.UserName == "" {
		return fmt.Errorf("failed to get bot info")
	}

	return nil
}

func conversationID(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}
