package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"spaces-planner/internal/service"
)

const (
	cbDonePrefix   = "done:"
	cbDeletePrefix = "del:"
	cbUndo         = "undo:"
)

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Warn("callback ack", zap.Error(err))
	}

	chatID := cb.Message.Chat.ID
	c := b.chat(ctx, chatID)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifier.Notify(service.CueUIClick)

	b.log.Info("callback", zap.Int64("chat", chatID), zap.String("data", cb.Data))

	var err error
	switch {
	case strings.HasPrefix(cb.Data, cbDonePrefix):
		err = b.completeFromList(ctx, c, chatID, cb.Message.MessageID, strings.TrimPrefix(cb.Data, cbDonePrefix))
	case strings.HasPrefix(cb.Data, cbDeletePrefix):
		err = b.deleteFromList(ctx, c, chatID, cb.Message.MessageID, strings.TrimPrefix(cb.Data, cbDeletePrefix))
	case cb.Data == cbUndo:
		err = b.handleUndo(ctx, c, chatID)
	default:
		return nil
	}
	if err != nil {
		return b.sendError(chatID, err)
	}
	return nil
}

func (b *Bot) completeFromList(ctx context.Context, c *chat, chatID int64, messageID int, id string) error {
	ws, err := c.session.Workspace()
	if err != nil {
		return err
	}
	if _, err := ws.ToggleComplete(ctx, id); err != nil {
		return err
	}
	b.refreshList(ctx, chatID, messageID, ws)
	return nil
}

func (b *Bot) deleteFromList(ctx context.Context, c *chat, chatID int64, messageID int, id string) error {
	ws, err := c.session.Workspace()
	if err != nil {
		return err
	}
	if err := b.deleteTask(ctx, ws, chatID, id); err != nil {
		return err
	}
	b.refreshList(ctx, chatID, messageID, ws)
	return nil
}

// refreshList redraws a task list message in place.
func (b *Bot) refreshList(ctx context.Context, chatID int64, messageID int, ws *service.Workspace) {
	tasks := ws.Visible()
	edit := tgbotapi.NewEditMessageText(chatID, messageID, renderTaskList(tasks, ws.View(), themeGlyphs(b.theme(ctx)), b.now()))
	edit.ParseMode = tgbotapi.ModeHTML
	if len(tasks) > 0 {
		kb := taskKeyboard(tasks)
		edit.ReplyMarkup = &kb
	}
	if _, err := b.api.Request(edit); err != nil {
		b.log.Warn("refresh list", zap.Int64("chat", chatID), zap.Error(err))
	}
}
