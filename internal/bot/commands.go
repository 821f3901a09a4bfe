package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"spaces-planner/internal/model"
	"spaces-planner/internal/service"
)

const maxBackupSize = 1 << 20

const helpText = "ℹ️ <b>Commands</b>\n" +
	"• /signup name password · /login name password · /logout\n" +
	"• /new text [#space] [!low|!medium|!high] [@2025-11-30] — add a task\n" +
	"• /tasks [space] — show tasks, optionally one space\n" +
	"• /find text — search the current list, /find alone clears it\n" +
	"• /done id · /edit id text · /due id 2025-11-30|- · /move id space\n" +
	"• /delete id — archive a task, /undo brings it back\n" +
	"• /spaces · /addspace name · /delspace name\n" +
	"• /archive · /restore id|space · /purge id|space\n" +
	"• /order id id … — reorder the full list\n" +
	"• /stats — progress per space\n" +
	"• /export — download a backup, send it back with the caption /import to restore\n" +
	"• /theme [light|dark]\n" +
	"Ids can be shortened to any unique prefix."

func (b *Bot) handleCommand(ctx context.Context, c *chat, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		return b.handleStart(c, msg)
	case "help":
		return b.sendText(chatID, helpText)
	case "signup", "login":
		return b.handleLogin(ctx, c, msg, args)
	case "logout":
		return b.handleLogout(ctx, c, chatID)
	case "new":
		return b.handleNew(ctx, c, chatID, args)
	case "tasks":
		return b.handleTasks(ctx, c, chatID, args)
	case "find":
		return b.handleFind(ctx, c, chatID, args)
	case "done":
		return b.handleDone(ctx, c, chatID, args)
	case "edit":
		return b.handleEdit(ctx, c, chatID, args)
	case "due":
		return b.handleDue(ctx, c, chatID, args)
	case "move":
		return b.handleMove(ctx, c, chatID, args)
	case "delete":
		return b.handleDelete(ctx, c, chatID, args)
	case "undo":
		return b.handleUndo(ctx, c, chatID)
	case "spaces":
		return b.handleSpaces(c, chatID)
	case "addspace":
		return b.handleAddSpace(ctx, c, chatID, args)
	case "delspace":
		return b.handleDeleteSpace(ctx, c, chatID, args)
	case "archive":
		return b.handleArchive(c, chatID)
	case "restore":
		return b.handleRestore(ctx, c, chatID, args)
	case "purge":
		return b.handlePurge(ctx, c, chatID, args)
	case "order":
		return b.handleOrder(ctx, c, chatID, args)
	case "stats":
		return b.handleStats(c, chatID)
	case "export":
		return b.handleExport(c, chatID)
	case "import":
		return usageError("Send the backup file as a document with the caption /import.")
	case "theme":
		return b.handleTheme(ctx, chatID, args)
	default:
		return b.sendText(chatID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleStart(c *chat, msg *tgbotapi.Message) error {
	if user := c.session.User(); user != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("👋 Welcome back, <b>%s</b>! /tasks shows your list, /help lists commands.", escape(user.Username)))
	}
	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "friend"
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf(
		"👋 Hi, %s!\n<b>I keep your tasks organised in spaces.</b>\n\n"+
			"Create an account with /signup name password or log in with /login name password.\n"+
			"/help lists everything I can do.",
		escape(name),
	))
}

func (b *Bot) handleLogin(ctx context.Context, c *chat, msg *tgbotapi.Message, args string) error {
	// the message carries a password
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(msg.Chat.ID, msg.MessageID)); err != nil {
		b.log.Debug("delete credentials message", zap.Error(err))
	}

	fields := strings.Fields(args)
	if len(fields) != 2 {
		return usageError(fmt.Sprintf("Usage: /%s name password", msg.Command()))
	}

	var (
		user *model.User
		err  error
	)
	if msg.Command() == "signup" {
		user, err = c.session.SignUp(ctx, fields[0], fields[1])
	} else {
		user, err = c.session.LogIn(ctx, fields[0], fields[1])
	}
	if err != nil {
		return err
	}
	b.clearUndoButton(msg.Chat.ID)
	return b.sendText(msg.Chat.ID, fmt.Sprintf("✅ Logged in as <b>%s</b>. Add a task with /new.", escape(user.Username)))
}

func (b *Bot) handleLogout(ctx context.Context, c *chat, chatID int64) error {
	if err := c.session.LogOut(ctx); err != nil {
		return err
	}
	b.clearUndoButton(chatID)
	return b.sendText(chatID, "👋 Logged out.")
}

func (b *Bot) handleNew(ctx context.Context, c *chat, chatID int64, args string) error {
	ws, err := c.session.Workspace()
	if err != nil {
		return err
	}
	input, err := parseNewTask(args)
	if err != nil {
		return err
	}
	task, err := ws.CreateTask(ctx, input)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("✅ Added <code>%s</code> %s to <b>%s</b>", shortID(task.ID), escape(task.Text), escape(task.Category))
	if err := b.sendText(chatID, text); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, ws)
}

func (b *Bot) handleTasks(ctx context.Context, c *chat, chatID int64, args string) error {
	ws, err := c.session.Workspace()
	if err != nil {
		return err
	}
	if err := ws.SetView(service.View{Category: args}); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, ws)
}

func (b *Bot) handleFind(ctx context.Context, c *chat, chatID int64, args string) error {
	ws, err := c.session.Workspace()
	if err != nil {
		return err
	}
	view := ws.View()
	view.Search = args
	if err := ws.SetView(view); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, ws)
}

func (b *Bot) handleDone(ctx context.Context, c *chat, chatID int64, args string) error {
	ws, err := c.session.Workspace()
	if err != nil {
		return err
	}
	id, err := resolveArg(ws, args, model.Active, "Usage: /done id")
	if err != nil {
		return err
	}
	task, err := ws.ToggleComplete(ctx, id)
	if err != nil {
		return err
	}
	if task.Completed {
		return b.sendText(chatID, fmt.Sprintf("☑️ Done: %s", escape(task.Text)))
	}
	return b.sendText(chatID, fmt.Sprintf("🔄 Reopened: %s", escape(task.Text)))
}

func (b *Bot) handleEdit(ctx context.Context, c *chat, chatID int64, args string) error {
	ref, text, _ := strings.Cut(args, " ")
	if strings.TrimSpace(text) == "" {
		return usageError("Usage: /edit id new text")
	}
	return b.patchTask(ctx, c, chatID, ref, service.TaskPatch{Text: &text})
}

func (b *Bot) handleDue(ctx context.Context, c *chat, chatID int64, args string) error {
	fields := strings.Fields(args)
	if len(fields) != 2 {
		return usageError("Usage: /due id 2025-11-30, or /due id - to clear")
	}
	if fields[1] == "-" {
		return b.patchTask(ctx, c, chatID, fields[0], service.TaskPatch{ClearDueDate: true})
	}
	due, err := parseDate(fields[1])
	if err != nil {
		return err
	}
	return b.patchTask(ctx, c, chatID, fields[0], service.TaskPatch{DueDate: &due})
}

func (b *Bot) handleMove(ctx context.Context, c *chat, chatID int64, args string) error {
	ref, space, _ := strings.Cut(args, " ")
	space = strings.TrimSpace(space)
	if space == "" {
		return usageError("Usage: /move id space")
	}
	return b.patchTask(ctx, c, chatID, ref, service.TaskPatch{Category: &space})
}

func (b *Bot) patchTask(ctx context.Context, c *chat, chatID int64, ref string, patch service.TaskPatch) error {
	ws, err := c.session.Workspace()
	if err != nil {
		return err
	}
	id, err := resolveArg(ws, ref, model.Active, "Which task? Pass its id.")
	if err != nil {
		return err
	}
	task, err := ws.UpdateTask(ctx, id, patch)
	if err != nil {
		return err
	}
	theme := b.theme(ctx)
	return b.sendText(chatID, "✏️ Updated\n"+formatTask(task, themeGlyphs(theme), b.now()))
}

func (b *Bot) handleDelete(ctx context.Context, c *chat, chatID int64, args string) error {
	ws, err := c.session.Workspace()
	if err != nil {
		return err
	}
	id, err := resolveArg(ws, args, model.Active, "Usage: /delete id")
	if err != nil {
		return err
	}
	return b.deleteTask(ctx, ws, chatID, id)
}

func (b *Bot) deleteTask(ctx context.Context, ws *service.Workspace, chatID int64, id string) error {
	task, err := ws.DeleteTask(ctx, id)
	if err != nil {
		return err
	}
	return b.sendUndoOffer(chatID, fmt.Sprintf("🗑 Archived %s", escape(task.Text)))
}

func (b *Bot) sendUndoOffer(chatID int64, text string) error {
	sent, err := b.sendWithReplyMarkup(chatID, text, undoKeyboard())
	if err != nil {
		return err
	}
	b.setUndoMessage(chatID, sent.MessageID)
	return nil
}

func (b *Bot) handleUndo(ctx context.Context, c *chat, chatID int64) error {
	ws, err := c.session.Workspace()
	if err != nil {
		return err
	}
	entry, ok, err := ws.Undo(ctx)
	if err != nil {
		return err
	}
	b.clearUndoButton(chatID)
	if !ok {
		return b.sendText(chatID, "Nothing to undo.")
	}
	if entry.Kind == service.UndoCategory {
		return b.sendText(chatID, fmt.Sprintf("↩️ Space <b>%s</b> is back.", escape(entry.Category)))
	}
	return b.sendText(chatID, fmt.Sprintf("↩️ Restored %s", escape(entry.Task.Text)))
}

func (b *Bot) handleSpaces(c *chat, chatID int64) error {
	ws, err := c.session.Workspace()
	if err != nil {
		return err
	}
	stats := ws.StatsByCategory()
	if len(stats) == 0 {
		return b.sendText(chatID, "No spaces yet. Create one with /addspace name.")
	}
	var builder strings.Builder
	builder.WriteString("🗂 <b>Spaces</b>\n")
	for _, s := range stats {
		builder.WriteString(fmt.Sprintf("• %s · %d\n", escape(s.Name), s.Count))
	}
	return b.sendText(chatID, strings.TrimSpace(builder.String()))
}

func (b *Bot) handleAddSpace(ctx context.Context, c *chat, chatID int64, args string) error {
	ws, err := c.session.Workspace()
	if err != nil {
		return err
	}
	cat, err := ws.CreateCategory(ctx, args)
	if err != nil {
		return err
	}
	return b.sendText(chatID, fmt.Sprintf("🗂 Space <b>%s</b> created.", escape(cat.Name)))
}

func (b *Bot) handleDeleteSpace(ctx context.Context, c *chat, chatID int64, args string) error {
	ws, err := c.session.Workspace()
	if err != nil {
		return err
	}
	if args == "" {
		return usageError("Usage: /delspace name")
	}
	fallback, moved, err := ws.DeleteCategory(ctx, args)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("🗑 Archived space <b>%s</b>.", escape(args))
	if moved > 0 {
		text += fmt.Sprintf(" %d task(s) moved to <b>%s</b>.", moved, escape(fallback))
	}
	return b.sendUndoOffer(chatID, text)
}

func (b *Bot) handleArchive(c *chat, chatID int64) error {
	ws, err := c.session.Workspace()
	if err != nil {
		return err
	}
	return b.sendText(chatID, renderArchive(ws.Snapshot()))
}

func (b *Bot) handleRestore(ctx context.Context, c *chat, chatID int64, args string) error {
	ws, err := c.session.Workspace()
	if err != nil {
		return err
	}
	if args == "" {
		return usageError("Usage: /restore id or /restore space")
	}
	id, err := ws.ResolveTaskID(args, model.Archived)
	switch {
	case err == nil:
		task, err := ws.RestoreTask(ctx, id)
		if err != nil {
			return err
		}
		b.clearUndoButton(chatID)
		return b.sendTransient(chatID, fmt.Sprintf("♻️ Restored %s to <b>%s</b>", escape(task.Text), escape(task.Category)))
	case errors.Is(err, service.ErrTaskNotFound):
		cat, err := ws.RestoreCategory(ctx, args)
		if err != nil {
			return err
		}
		b.clearUndoButton(chatID)
		return b.sendTransient(chatID, fmt.Sprintf("♻️ Space <b>%s</b> restored", escape(cat.Name)))
	default:
		return err
	}
}

func (b *Bot) handlePurge(ctx context.Context, c *chat, chatID int64, args string) error {
	ws, err := c.session.Workspace()
	if err != nil {
		return err
	}
	if args == "" {
		return usageError("Usage: /purge id or /purge space")
	}
	id, err := ws.ResolveTaskID(args, model.Archived)
	switch {
	case err == nil:
		if err := ws.PurgeTask(ctx, id); err != nil {
			return err
		}
	case errors.Is(err, service.ErrTaskNotFound):
		if err := ws.PurgeCategory(ctx, args); err != nil {
			return err
		}
	default:
		return err
	}
	b.clearUndoButton(chatID)
	return b.sendTransient(chatID, "🔥 Deleted for good")
}

func (b *Bot) handleOrder(ctx context.Context, c *chat, chatID int64, args string) error {
	ws, err := c.session.Workspace()
	if err != nil {
		return err
	}
	refs := strings.Fields(args)
	if len(refs) == 0 {
		return usageError("Usage: /order id id … listing every task")
	}
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		id, err := ws.ResolveTaskID(ref, model.Active)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	if err := ws.Reorder(ctx, ids); err != nil {
		return err
	}
	return b.sendTaskList(ctx, chatID, ws)
}

func (b *Bot) handleStats(c *chat, chatID int64) error {
	ws, err := c.session.Workspace()
	if err != nil {
		return err
	}
	return b.sendText(chatID, renderStats(ws.StatsByCategory()))
}

func (b *Bot) handleExport(c *chat, chatID int64) error {
	ws, err := c.session.Workspace()
	if err != nil {
		return err
	}
	data, err := ws.Export()
	if err != nil {
		return err
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  service.BackupFileName(ws.User().UsernameKey, b.now()),
		Bytes: data,
	})
	doc.Caption = "📤 Backup of your tasks and spaces"
	_, err = b.api.Send(doc)
	return err
}

func (b *Bot) handleImport(ctx context.Context, c *chat, msg *tgbotapi.Message) error {
	ws, err := c.session.Workspace()
	if err != nil {
		return err
	}
	if msg.Document.FileSize > maxBackupSize {
		return usageError("The backup is too large.")
	}
	data, err := b.download(ctx, msg.Document.FileID)
	if err != nil {
		return err
	}
	backup, err := service.ParseBackup(data)
	if err != nil {
		return err
	}
	if err := ws.Import(ctx, backup); err != nil {
		return err
	}
	b.clearUndoButton(msg.Chat.ID)

	var parts []string
	if backup.HasTasks {
		parts = append(parts, fmt.Sprintf("%d task(s)", len(backup.Tasks)))
	}
	if backup.HasCategories {
		parts = append(parts, fmt.Sprintf("%d space(s)", len(backup.Categories)))
	}
	if len(parts) == 0 {
		return b.sendText(msg.Chat.ID, "📥 The backup was empty, nothing changed.")
	}
	return b.sendText(msg.Chat.ID, "📥 Imported "+strings.Join(parts, " and ")+".")
}

func (b *Bot) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := b.deps.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBackupSize+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) > maxBackupSize {
		return nil, usageError("The backup is too large.")
	}
	return data, nil
}

func (b *Bot) handleTheme(ctx context.Context, chatID int64, args string) error {
	var (
		theme service.Theme
		err   error
	)
	if args == "" {
		theme, err = b.deps.Preferences.ToggleTheme(ctx)
	} else {
		var ok bool
		if theme, ok = service.ParseTheme(args); !ok {
			return usageError("Usage: /theme light or /theme dark")
		}
		err = b.deps.Preferences.SetTheme(ctx, theme)
	}
	if err != nil {
		return err
	}
	g := themeGlyphs(theme)
	return b.sendText(chatID, fmt.Sprintf("🎨 Theme: %s (%s open, %s done)", theme, g.open, g.done))
}

func (b *Bot) theme(ctx context.Context) service.Theme {
	if b.deps.Preferences == nil {
		return service.ThemeLight
	}
	theme, err := b.deps.Preferences.Theme(ctx)
	if err != nil {
		b.log.Warn("read theme", zap.Error(err))
	}
	return theme
}

func (b *Bot) sendTaskList(ctx context.Context, chatID int64, ws *service.Workspace) error {
	tasks := ws.Visible()
	text := renderTaskList(tasks, ws.View(), themeGlyphs(b.theme(ctx)), b.now())
	if len(tasks) == 0 {
		return b.sendText(chatID, text)
	}
	_, err := b.sendWithReplyMarkup(chatID, text, taskKeyboard(tasks))
	return err
}

func (b *Bot) handleMenuAlias(ctx context.Context, c *chat, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(strings.ToLower(msg.Text))
	switch text {
	case strings.ToLower(menuLabelTasks):
		return true, b.handleTasks(ctx, c, msg.Chat.ID, "")
	case strings.ToLower(menuLabelSpaces):
		return true, b.handleSpaces(c, msg.Chat.ID)
	case strings.ToLower(menuLabelArchive):
		return true, b.handleArchive(c, msg.Chat.ID)
	case strings.ToLower(menuLabelHelp):
		return true, b.sendText(msg.Chat.ID, helpText)
	default:
		return false, nil
	}
}

func resolveArg(ws *service.Workspace, ref string, coll model.Collection, usage string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", usageError(usage)
	}
	return ws.ResolveTaskID(ref, coll)
}
