package service

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"spaces-planner/internal/model"
)

// dueSoon is how close a due date must be to be flagged in the summary.
const dueSoon = 48 * time.Hour

// DailySummary renders the periodic report of open tasks (earliest due date
// first, undated ones newest first) followed by per-space progress. The
// output is Telegram HTML.
func DailySummary(tasks []model.Task, stats []model.CategoryStats, now time.Time) string {
	var pending []model.Task
	for _, task := range tasks {
		if !task.Completed {
			pending = append(pending, task)
		}
	}

	sort.SliceStable(pending, func(i, j int) bool {
		switch {
		case pending[i].DueDate == nil && pending[j].DueDate == nil:
			return pending[i].CreatedAt.After(pending[j].CreatedAt)
		case pending[i].DueDate == nil:
			return false
		case pending[j].DueDate == nil:
			return true
		default:
			return pending[i].DueDate.Before(*pending[j].DueDate)
		}
	})

	var builder strings.Builder
	builder.WriteString("📋 <b>Daily report</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("2006-01-02")))

	builder.WriteString("🔥 <b>Open tasks</b>\n")
	if len(pending) == 0 {
		builder.WriteString("— nothing open\n")
	} else {
		for _, task := range pending {
			builder.WriteString(formatReminder(task, now))
		}
	}

	if len(stats) > 0 {
		builder.WriteString("\n📊 <b>Spaces</b>\n")
		for _, s := range stats {
			builder.WriteString(fmt.Sprintf("%s: %d/%d (%.0f%%)\n", html.EscapeString(s.Name), s.Completed, s.Count, s.Progress))
		}
	}

	return strings.TrimSpace(builder.String())
}

func formatReminder(task model.Task, now time.Time) string {
	var sb strings.Builder

	icon := "🟢"
	if task.DueDate != nil {
		d := task.DueDate.In(now.Location())
		switch {
		case now.After(d):
			icon = "⚠️"
		case d.Sub(now) <= dueSoon:
			icon = "⏳"
		}
	}

	sb.WriteString(fmt.Sprintf("%s %s <i>(%s)</i>", icon, html.EscapeString(task.Text), html.EscapeString(task.Category)))
	if task.Priority == model.PriorityHigh {
		sb.WriteString(" ❗")
	}

	if task.DueDate != nil {
		d := task.DueDate.In(now.Location())
		if now.After(d) {
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s · <b>overdue</b>", d.Format("2006-01-02")))
		} else {
			daysLeft := int(d.Sub(now).Hours()/24) + 1
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s · ≈%d d left", d.Format("2006-01-02"), daysLeft))
		}
	}

	if task.Description != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(task.Description)))
	}

	sb.WriteByte('\n')
	return sb.String()
}
