package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/julianstephens/evertodo/internal/engine"
	"github.com/julianstephens/evertodo/internal/recur"
)

type TodayCmd struct {
	Filter string `help:"Completion filter (all|active|completed)." default:"all"`
	Search string `short:"s" help:"Free-text search over todo text."`
}

func (c *TodayCmd) Run(ctx *Context) error {
	filter, err := parseFilter(c.Filter)
	if err != nil {
		return err
	}

	entries, err := ctx.Engine.Today(context.Background(), filter, c.Search)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("Nothing scheduled for today.")
		return nil
	}
	for _, v := range entries {
		fmt.Println(FormatEntry(v))
	}
	return nil
}

type UpcomingCmd struct{}

func (c *UpcomingCmd) Run(ctx *Context) error {
	groups, err := ctx.Engine.Upcoming(context.Background())
	if err != nil {
		return err
	}
	printGroups(groups)
	return nil
}

type OverdueCmd struct {
	Filter string `help:"Completion filter (all|active|completed)." default:"active"`
}

func (c *OverdueCmd) Run(ctx *Context) error {
	filter, err := parseFilter(c.Filter)
	if err != nil {
		return err
	}

	groups, err := ctx.Engine.Overdue(context.Background(), filter)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		fmt.Println("Nothing overdue.")
		return nil
	}
	printGroups(groups)
	return nil
}

func printGroups(groups []engine.DateGroup) {
	today := recur.DateOnly(time.Now())
	for _, g := range groups {
		if len(g.Entries) == 0 {
			continue
		}
		fmt.Printf("%s (%s)\n", groupHeading(g.Date, today), recur.FormatDate(g.Date))
		for _, v := range g.Entries {
			fmt.Printf("  %s\n", FormatEntry(v))
		}
	}
}
