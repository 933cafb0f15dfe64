package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/evertodo/internal/recur"
	"github.com/julianstephens/evertodo/internal/validation"
)

// ScheduleCmd attaches, replaces, or clears a todo's recurring pattern. The
// pattern is replaced wholesale; there is no partial edit.
type ScheduleCmd struct {
	ID       string       `arg:"" help:"Todo ID."`
	Clear    bool         `help:"Remove the recurring pattern."`
	Patterns PatternFlags `embed:""`
}

func (c *ScheduleCmd) Validate() error {
	if c.Clear && c.Patterns.Repeat != "" {
		return fmt.Errorf("--clear cannot be combined with --repeat")
	}
	if !c.Clear && c.Patterns.Repeat == "" {
		return fmt.Errorf("either --repeat or --clear is required")
	}
	return nil
}

func (c *ScheduleCmd) Run(ctx *Context) error {
	bg := context.Background()

	todo, err := ctx.Store.GetTodo(bg, ctx.Config.Owner, c.ID)
	if err != nil {
		return err
	}

	if c.Clear {
		todo.RecurringPattern = nil
		if err := ctx.Session.Update(bg, todo); err != nil {
			return err
		}
		fmt.Printf("Cleared schedule for %q\n", todo.Text)
		return nil
	}

	anchor := todo.DueDate
	if anchor == nil {
		today := recur.DateOnly(time.Now())
		anchor = &today
	}
	pattern, err := c.Patterns.BuildPattern(anchor)
	if err != nil {
		return err
	}
	if err := validation.Pattern(pattern); err != nil {
		return err
	}

	todo.RecurringPattern = pattern
	if err := ctx.Session.Update(bg, todo); err != nil {
		return err
	}

	fmt.Printf("Scheduled %q: %s\n", todo.Text, pattern.String())
	return nil
}
