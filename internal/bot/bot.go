package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"spaces-planner/internal/service"
)

// telegramAPI is the part of *tgbotapi.BotAPI the bot uses.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Deps are the services the bot drives.
type Deps struct {
	Sessions    service.SessionDeps
	Preferences *service.Preferences
	// Feedback delivers cues off the update loop; nil delivers them inline.
	Feedback   *service.Feedback
	HTTPClient *http.Client
	Log        *zap.Logger
}

// chat is the state kept per Telegram chat. mu serializes everything that
// touches the session.
type chat struct {
	mu       sync.Mutex
	session  *service.Session
	notifier service.Notifier

	// guarded by Bot.mu
	undoMessage int
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api   telegramAPI
	deps  Deps
	log   *zap.Logger
	after service.AfterFunc
	now   func() time.Time
	mu    sync.Mutex
	chats map[int64]*chat
}

func New(token string, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	b := newBot(api, deps)
	b.log.Info("bot authorized", zap.String("account", api.Self.UserName))
	return b, nil
}

func newBot(api telegramAPI, deps Deps) *Bot {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if deps.Sessions.Log == nil {
		deps.Sessions.Log = deps.Log
	}
	after := deps.Sessions.AfterFunc
	if after == nil {
		after = service.RealAfterFunc
	}
	return &Bot{
		api:   api,
		deps:  deps,
		log:   deps.Log.Named("bot"),
		after: after,
		now:   time.Now,
		chats: make(map[int64]*chat),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info("start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.log.Error("handle callback", zap.Error(err))
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.Error("handle message", zap.Error(err))
			}
		}
	}

	return nil
}

// chat returns the state of chatID, resuming a stored session the first time
// the chat is seen.
func (b *Bot) chat(ctx context.Context, chatID int64) *chat {
	b.mu.Lock()
	c, ok := b.chats[chatID]
	if ok {
		b.mu.Unlock()
		return c
	}

	var notifier service.Notifier = chatNotifier{bot: b, chatID: chatID}
	if b.deps.Feedback != nil {
		notifier = b.deps.Feedback.For(notifier)
	}
	c = &chat{notifier: notifier}
	c.session = service.NewSession(strconv.FormatInt(chatID, 10), b.deps.Sessions, notifier, func(service.UndoEntry) {
		b.clearUndoButton(chatID)
	})
	c.mu.Lock()
	b.chats[chatID] = c
	b.mu.Unlock()
	defer c.mu.Unlock()

	if resumed, err := c.session.Resume(ctx); err != nil {
		b.log.Warn("resume session", zap.Int64("chat", chatID), zap.Error(err))
	} else if resumed {
		b.log.Info("session resumed", zap.Int64("chat", chatID), zap.String("user", c.session.User().Username))
	}
	return c
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil || msg.Chat == nil {
		return nil
	}
	chatID := msg.Chat.ID
	c := b.chat(ctx, chatID)
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	switch {
	case msg.Document != nil && isImportCaption(msg.Caption):
		b.log.Info("backup upload", zap.Int64("chat", chatID), zap.String("file", msg.Document.FileName))
		err = b.handleImport(ctx, c, msg)
	case msg.IsCommand():
		b.log.Info("command", zap.Int64("chat", chatID), zap.String("command", msg.Command()))
		err = b.handleCommand(ctx, c, msg)
	default:
		var handled bool
		if handled, err = b.handleMenuAlias(ctx, c, msg); !handled {
			return b.sendText(chatID, "I did not get that. Add a task with /new or see /help.")
		}
	}
	if err != nil {
		return b.sendError(chatID, err)
	}
	return nil
}

// SendDailyReports sends a summary to every chat with a stored session.
func (b *Bot) SendDailyReports(ctx context.Context) error {
	devices, err := service.ActiveSessions(ctx, b.deps.Sessions.Settings)
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(devices))
	for device := range devices {
		chatID, err := strconv.ParseInt(device, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, chatID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	now := b.now()
	for _, chatID := range ids {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		text, ok := b.summary(ctx, chatID, now)
		if !ok {
			continue
		}
		if err := b.sendText(chatID, text); err != nil {
			b.log.Warn("send summary", zap.Int64("chat", chatID), zap.Error(err))
		}
	}
	return nil
}

func (b *Bot) summary(ctx context.Context, chatID int64, now time.Time) (string, bool) {
	c := b.chat(ctx, chatID)
	c.mu.Lock()
	defer c.mu.Unlock()
	ws, err := c.session.Workspace()
	if err != nil {
		return "", false
	}
	return service.DailySummary(ws.Snapshot().ActiveTasks, ws.StatsByCategory(), now), true
}

// setUndoMessage remembers the message carrying the undo button, stripping
// the button from the one it replaces.
func (b *Bot) setUndoMessage(chatID int64, messageID int) {
	b.mu.Lock()
	c := b.chats[chatID]
	var previous int
	if c != nil {
		previous = c.undoMessage
		c.undoMessage = messageID
	}
	b.mu.Unlock()
	b.stripKeyboard(chatID, previous)
}

func (b *Bot) clearUndoButton(chatID int64) {
	b.mu.Lock()
	c := b.chats[chatID]
	var messageID int
	if c != nil {
		messageID = c.undoMessage
		c.undoMessage = 0
	}
	b.mu.Unlock()
	b.stripKeyboard(chatID, messageID)
}

func (b *Bot) stripKeyboard(chatID int64, messageID int) {
	if messageID == 0 {
		return
	}
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	})
	if _, err := b.api.Request(edit); err != nil {
		b.log.Warn("strip keyboard", zap.Int64("chat", chatID), zap.Error(err))
	}
}

// sendTransient sends text and deletes it again after the confirmation window.
func (b *Bot) sendTransient(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	sent, err := b.api.Send(msg)
	if err != nil {
		return err
	}
	b.after(service.ConfirmationWindow, func() {
		if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, sent.MessageID)); err != nil {
			b.log.Debug("delete confirmation", zap.Int64("chat", chatID), zap.Error(err))
		}
	})
	return nil
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	return b.api.Send(msg)
}

// usageError is shown to the user verbatim.
type usageError string

func (e usageError) Error() string { return string(e) }

// sendError turns a failed operation into a chat reply. Unexpected errors are
// logged and reported generically.
func (b *Bot) sendError(chatID int64, err error) error {
	var usage usageError
	var text string
	switch {
	case errors.As(err, &usage):
		text = "ℹ️ " + escape(usage.Error())
	case errors.Is(err, service.ErrNotAuthenticated):
		text = "🔒 Log in first: /login name password\nNew here? /signup name password"
	case errors.Is(err, service.ErrMalformedBackup):
		text = "⚠️ That file is not a valid backup."
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrNotFound):
		text = "⚠️ " + escape(capitalize(err.Error())) + "."
	default:
		b.log.Error("operation failed", zap.Int64("chat", chatID), zap.Error(err))
		text = "Something went wrong. Please try again."
	}
	return b.sendText(chatID, text)
}

// chatNotifier turns workspace cues into chat reactions.
type chatNotifier struct {
	bot    *Bot
	chatID int64
}

func (n chatNotifier) Notify(cue service.Cue) {
	if cue != service.CueTaskCompleted {
		n.bot.log.Debug("cue", zap.Int64("chat", n.chatID), zap.String("cue", string(cue)))
		return
	}
	if _, err := n.bot.api.Send(tgbotapi.NewMessage(n.chatID, "🎉")); err != nil {
		n.bot.log.Warn("send celebration", zap.Int64("chat", n.chatID), zap.Error(err))
	}
}

func isImportCaption(caption string) bool {
	fields := strings.Fields(caption)
	if len(fields) == 0 {
		return false
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return cmd == "/import"
}
