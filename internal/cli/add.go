package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/evertodo/internal/constants"
	"github.com/julianstephens/evertodo/internal/models"
	"github.com/julianstephens/evertodo/internal/recur"
	"github.com/julianstephens/evertodo/internal/validation"
)

type AddCmd struct {
	Text     string       `arg:"" help:"Todo text."`
	Due      string       `short:"d" help:"Due date (YYYY-MM-DD)."`
	Remind   string       `help:"Reminder time on the due date (HH:MM)."`
	Folder   string       `short:"f" help:"Folder ID."`
	Patterns PatternFlags `embed:""`
}

func (c *AddCmd) Validate() error {
	if c.Remind != "" && c.Due == "" {
		return fmt.Errorf("--remind requires --due")
	}
	if c.Remind != "" {
		if _, err := time.Parse(constants.TimeFormat, c.Remind); err != nil {
			return fmt.Errorf("invalid --remind time format (expected HH:MM): %w", err)
		}
	}
	return nil
}

func (c *AddCmd) Run(ctx *Context) error {
	todo := models.Todo{Text: c.Text}

	if c.Folder != "" {
		todo.FolderID = &c.Folder
	}
	if c.Due != "" {
		due, err := recur.ParseDate(c.Due)
		if err != nil {
			return fmt.Errorf("invalid --due date: %w", err)
		}
		todo.DueDate = &due
		if c.Remind != "" {
			clock, _ := time.Parse(constants.TimeFormat, c.Remind)
			remind := time.Date(due.Year(), due.Month(), due.Day(),
				clock.Hour(), clock.Minute(), 0, 0, time.Local)
			todo.ReminderAt = &remind
		}
	}

	// Interval counting anchors to the due date, falling back to today for
	// dateless recurring todos.
	anchor := todo.DueDate
	if anchor == nil && c.Patterns.Repeat != "" {
		today := recur.DateOnly(time.Now())
		anchor = &today
	}
	pattern, err := c.Patterns.BuildPattern(anchor)
	if err != nil {
		return err
	}
	todo.RecurringPattern = pattern

	if err := validation.Todo(todo); err != nil {
		return err
	}

	stored, err := ctx.Session.Create(context.Background(), todo)
	if err != nil {
		return err
	}

	fmt.Printf("Added: %s (ID: %s)\n", stored.Text, stored.ID)
	if stored.IsRecurring() {
		fmt.Printf("Repeats %s\n", stored.RecurringPattern.String())
	}
	return nil
}
