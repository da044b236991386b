package main

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/erazemk/izposoja/internal/config"
	"github.com/erazemk/izposoja/internal/db"
	"github.com/erazemk/izposoja/internal/model"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	overdueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)
	dueSoonStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Padding(0, 1)
	mutedStyle   = lipgloss.NewStyle().Faint(true)
)

// printOverdue writes the overdue and due-soon loans of the configured store.
func printOverdue(w io.Writer, cfg *config.Config) error {
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	ctx := context.Background()
	backend, closeBackend, err := openBackend(ctx, cfg, database)
	if err != nil {
		return err
	}
	defer closeBackend()

	items, err := backend.List(ctx)
	if err != nil {
		return fmt.Errorf("listing items: %w", err)
	}

	fmt.Fprintln(w, renderLoans(items, time.Now(), cfg.Insights.DueSoon()))
	return nil
}

// renderLoans formats overdue loans followed by loans due within dueSoon.
func renderLoans(items []model.Item, now time.Time, dueSoon time.Duration) string {
	overdue := model.FilterOverdue(items, now)
	upcoming := model.DueWithin(items, now, dueSoon)

	if len(overdue) == 0 && len(upcoming) == 0 {
		return mutedStyle.Render("No overdue or due-soon loans.")
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Status", "Code", "Item", "Recipient", "Mobile", "Due", "Days").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row < len(overdue):
				return overdueStyle
			default:
				return dueSoonStyle
			}
		})

	for _, it := range overdue {
		t.Row(loanRow(it, model.StatusOverdue, now)...)
	}
	for _, it := range upcoming {
		t.Row(loanRow(it, "Due soon", now)...)
	}

	title := titleStyle.Render(fmt.Sprintf("%d overdue, %d due soon", len(overdue), len(upcoming)))
	return lipgloss.JoinVertical(lipgloss.Left, title, t.Render())
}

func loanRow(it model.Item, status string, now time.Time) []string {
	due := ""
	days := ""
	if it.ExpectedReturnDate != nil {
		due = it.ExpectedReturnDate.Local().Format(time.DateOnly)
		days = fmt.Sprintf("%+d", daysBetween(now, *it.ExpectedReturnDate))
	}
	return []string{status, it.ItemCode, it.Name, it.RecipientName, it.RecipientMobile, due, days}
}

// daysBetween counts calendar days from a to b in local time.
func daysBetween(a, b time.Time) int {
	a = a.Local()
	b = b.Local()
	from := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.Local)
	to := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.Local)
	return int(math.Round(to.Sub(from).Hours() / 24))
}
