package bot

import (
	"fmt"
	"html"
	"strings"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"spaces-planner/internal/model"
	"spaces-planner/internal/service"
)

const (
	iconDefault      = "🟢"
	iconDue          = "⏳"
	iconOverdue      = "⚠️"
	menuLabelTasks   = "📋 Tasks"
	menuLabelSpaces  = "🗂 Spaces"
	menuLabelArchive = "📦 Archive"
	menuLabelHelp    = "ℹ️ Help"
	maxListButtons   = 40
	shortIDLength    = 8
	dateLayout       = "2006-01-02"
)

// glyphs are the checkbox marks of a theme.
type glyphs struct {
	open string
	done string
}

func themeGlyphs(theme service.Theme) glyphs {
	if theme == service.ThemeDark {
		return glyphs{open: "⬛", done: "✅"}
	}
	return glyphs{open: "⬜", done: "☑️"}
}

func renderTaskList(tasks []model.Task, view service.View, g glyphs, now time.Time) string {
	var builder strings.Builder
	builder.WriteString("📋 <b>Tasks</b>")
	if view.Category != "" {
		builder.WriteString(" · " + escape(view.Category))
	}
	if search := strings.TrimSpace(view.Search); search != "" {
		builder.WriteString(fmt.Sprintf(" · “%s”", escape(search)))
	}
	builder.WriteString("\n\n")

	if len(tasks) == 0 {
		builder.WriteString("Nothing here. Add a task with /new.")
		return builder.String()
	}
	for _, task := range tasks {
		builder.WriteString(formatTask(task, g, now))
	}
	return strings.TrimSpace(builder.String())
}

func formatTask(task model.Task, g glyphs, now time.Time) string {
	var b strings.Builder
	mark := g.open
	if task.Completed {
		mark = g.done
	}
	b.WriteString(fmt.Sprintf("%s <code>%s</code> %s%s <i>(%s)</i>\n", mark, shortID(task.ID), escape(task.Text), priorityMark(task.Priority), escape(task.Category)))
	if task.DueDate != nil {
		d := task.DueDate.In(now.Location())
		switch {
		case now.After(d):
			b.WriteString(fmt.Sprintf("   %s due %s · <b>overdue</b>\n", iconOverdue, d.Format(dateLayout)))
		case d.Sub(now) <= 48*time.Hour:
			b.WriteString(fmt.Sprintf("   %s due %s\n", iconDue, d.Format(dateLayout)))
		default:
			b.WriteString(fmt.Sprintf("   %s due %s\n", iconDefault, d.Format(dateLayout)))
		}
	}
	if task.Description != "" {
		b.WriteString(fmt.Sprintf("   📝 %s\n", escape(task.Description)))
	}
	return b.String()
}

func priorityMark(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return " ❗"
	case model.PriorityLow:
		return " 💤"
	default:
		return ""
	}
}

func renderArchive(p model.Partition) string {
	if len(p.ArchivedTasks) == 0 && len(p.ArchivedCategories) == 0 {
		return "📦 The archive is empty."
	}
	var builder strings.Builder
	builder.WriteString("📦 <b>Archive</b>\n")
	for _, task := range p.ArchivedTasks {
		builder.WriteString(fmt.Sprintf("• <code>%s</code> %s <i>(%s)</i>\n", shortID(task.ID), escape(task.Text), escape(task.Category)))
	}
	for _, name := range p.ArchivedCategories {
		builder.WriteString(fmt.Sprintf("• 🗂 %s\n", escape(name)))
	}
	builder.WriteString("\n/restore or /purge with an id or a space name.")
	return builder.String()
}

func renderStats(stats []model.CategoryStats) string {
	if len(stats) == 0 {
		return "📊 No spaces yet."
	}
	var builder strings.Builder
	builder.WriteString("📊 <b>Progress</b>\n")
	for _, s := range stats {
		builder.WriteString(fmt.Sprintf("%s %s %d/%d · %.0f%%\n", progressBar(s.Progress), escape(s.Name), s.Completed, s.Count, s.Progress))
	}
	return strings.TrimSpace(builder.String())
}

func progressBar(progress float64) string {
	const width = 5
	filled := int(progress/100*width + 0.5)
	return strings.Repeat("▰", filled) + strings.Repeat("▱", width-filled)
}

func taskKeyboard(tasks []model.Task) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, task := range tasks {
		if i == maxListButtons {
			break
		}
		label := "✔ "
		if task.Completed {
			label = "↺ "
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label+shortTitle(task.Text, 24), cbDonePrefix+task.ID),
			tgbotapi.NewInlineKeyboardButtonData("🗑", cbDeletePrefix+task.ID),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func undoKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("↩️ Undo", cbUndo),
	))
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelTasks),
			tgbotapi.NewKeyboardButton(menuLabelSpaces),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelArchive),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

// parseNewTask reads "/new" arguments: plain words form the text, #space picks
// the space, !priority the priority and @yyyy-mm-dd the due date.
func parseNewTask(args string) (service.TaskInput, error) {
	var input service.TaskInput
	var words []string
	for _, tok := range strings.Fields(args) {
		switch {
		case len(tok) > 1 && tok[0] == '#':
			input.Category = tok[1:]
		case len(tok) > 1 && tok[0] == '!':
			priority, ok := model.ParsePriority(tok[1:])
			if !ok {
				return service.TaskInput{}, usageError("Priority is one of !low, !medium or !high.")
			}
			input.Priority = priority
		case len(tok) > 1 && tok[0] == '@':
			due, err := parseDate(tok[1:])
			if err != nil {
				return service.TaskInput{}, err
			}
			input.DueDate = &due
		default:
			words = append(words, tok)
		}
	}
	input.Text = strings.Join(words, " ")
	if input.Text == "" {
		return service.TaskInput{}, usageError("Usage: /new text [#space] [!high] [@2025-11-30]")
	}
	return input, nil
}

func parseDate(raw string) (time.Time, error) {
	parsed, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, usageError("Dates look like 2025-11-30.")
	}
	return parsed, nil
}

func shortID(id string) string {
	if len(id) <= shortIDLength {
		return id
	}
	return id[:shortIDLength]
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func escape(s string) string {
	return html.EscapeString(s)
}

func capitalize(value string) string {
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
