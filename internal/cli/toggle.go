package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/evertodo/internal/engine"
	"github.com/julianstephens/evertodo/internal/recur"
)

type ToggleCmd struct {
	ID     string `arg:"" help:"Todo ID."`
	Date   string `short:"d" help:"Occurrence date to toggle (YYYY-MM-DD); omit for the todo itself."`
	Undone bool   `short:"u" help:"Mark as not completed instead."`
}

func (c *ToggleCmd) Run(ctx *Context) error {
	bg := context.Background()

	todo, err := ctx.Store.GetTodo(bg, ctx.Config.Owner, c.ID)
	if err != nil {
		return err
	}

	var virtualDate *time.Time
	if c.Date != "" {
		d, err := recur.ParseDate(c.Date)
		if err != nil {
			return fmt.Errorf("invalid --date: %w", err)
		}
		virtualDate = &d
	}

	action := engine.Classify(todo, !c.Undone, virtualDate)
	successor, err := ctx.Engine.Toggle(bg, todo, !c.Undone, virtualDate)
	if err != nil {
		return err
	}

	switch action.Kind {
	case engine.AdvanceSeries:
		if successor != nil {
			fmt.Printf("Completed %q; next occurrence due %s (ID: %s)\n",
				todo.Text, recur.FormatDate(*successor.DueDate), successor.ID)
		} else {
			fmt.Printf("Completed %q; series finished.\n", todo.Text)
		}
	case engine.RecordHistory:
		state := "completed"
		if c.Undone {
			state = "not completed"
		}
		fmt.Printf("Recorded %q as %s for %s\n",
			todo.Text, state, recur.FormatDate(action.OccurrenceDate))
	case engine.NoOp:
		fmt.Println("Nothing to do: the current occurrence cannot be un-completed.")
	default:
		state := "completed"
		if c.Undone {
			state = "active"
		}
		fmt.Printf("Marked %q as %s\n", todo.Text, state)
	}
	return nil
}
