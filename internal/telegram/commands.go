package telegram

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/harun/pdfbot/pkg/dispatcher"
)

const helpText = `📄 PDF Bot converts and edits documents.

/start - choose a task
/done - finish collecting files (Image → PDF, Merge PDFs)
/cancel - abandon the current task
/help - show this message

Pick a task, send the files it asks for, and the result comes back as a PDF.`

// Commands routes bot commands to their handlers
type Commands struct {
	bot      *Bot
	logger   zerolog.Logger
	handlers map[string]command
}

// CommandFunc is a function that handles a command
type CommandFunc func(ctx context.Context, cc CommandContext) error

type command struct {
	description string
	fn          CommandFunc
}

// CommandContext contains command metadata
type CommandContext struct {
	ChatID    int64
	MessageID int
	UserID    int64
	Username  string
	Command   string
	Args      []string
	RawArgs   string
}

// NewCommands creates a new command handler
func NewCommands(bot *Bot) *Commands {
	return &Commands{
		bot:      bot,
		logger:   bot.logger.With().Str("module", "commands").Logger(),
		handlers: make(map[string]command),
	}
}

// registerCommands wires the conversation commands to the dispatcher
func (b *Bot) registerCommands() {
	b.commands.Register("start", "choose a task", func(ctx context.Context, cc CommandContext) error {
		return b.sendMenu(cc.ChatID, dispatcher.Welcome())
	})
	b.commands.Register("help", "how to use the bot", func(ctx context.Context, cc CommandContext) error {
		return b.SendMessage(cc.ChatID, helpText)
	})
	b.commands.Register("done", "finish collecting files", func(ctx context.Context, cc CommandContext) error {
		return b.render(ctx, cc.ChatID, b.dispatcher.ReceiveFinishSignal(ctx, conversationID(cc.ChatID)))
	})
	b.commands.Register("cancel", "abandon the current task", func(ctx context.Context, cc CommandContext) error {
		return b.render(ctx, cc.ChatID, b.dispatcher.Cancel(ctx, conversationID(cc.ChatID)))
	})
}

// HandleCommand processes an incoming command
func (c *Commands) HandleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	if msg == nil || !msg.IsCommand() {
		return nil
	}

	name := msg.Command()
	args := strings.Fields(msg.CommandArguments())

	cc := CommandContext{
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
		Command:   name,
		Args:      args,
		RawArgs:   msg.CommandArguments(),
	}
	if msg.From != nil {
		cc.UserID = msg.From.ID
		cc.Username = msg.From.UserName
	}

	c.logger.Debug().
		Int64("chat_id", cc.ChatID).
		Str("command", name).
		Strs("args", args).
		Msg("Command received")

	cmd, exists := c.handlers[name]
	if !exists {
		return c.sendUnknownCommand(cc)
	}

	return cmd.fn(ctx, cc)
}

// Register registers a command handler
func (c *Commands) Register(name, description string, fn CommandFunc) {
	c.handlers[name] = command{description: description, fn: fn}
	c.logger.Debug().Str("command", name).Msg("Command registered")
}

// Publish sets the bot's command list in Telegram
func (c *Commands) Publish() error {
	names := c.GetRegisteredCommands()
	commands := make([]tgbotapi.BotCommand, 0, len(names))
	for _, name := range names {
		commands = append(commands, tgbotapi.BotCommand{
			Command:     name,
			Description: c.handlers[name].description,
		})
	}

	if _, err := c.bot.api.Request(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		return fmt.Errorf("failed to set commands: %w", err)
	}

	c.logger.Info().Int("count", len(commands)).Msg("Bot commands updated")
	return nil
}

// sendUnknownCommand sends an unknown command response
func (c *Commands) sendUnknownCommand(cc CommandContext) error {
	text := fmt.Sprintf("Unknown command: /%s. Type /help for the list.", cc.Command)
	return c.bot.SendMessage(cc.ChatID, text)
}

// GetRegisteredCommands returns all registered commands, sorted
func (c *Commands) GetRegisteredCommands() []string {
	commands := make([]string, 0, len(c.handlers))
	for name := range c.handlers {
		commands = append(commands, name)
	}
	sort.Strings(commands)
	return commands
}
