package cli

import (
	"context"
	"fmt"
	"strings"
)

type ListCmd struct {
	Filter string `help:"Completion filter (all|active|completed)." default:"all"`
	Search string `short:"s" help:"Free-text search over todo text."`
}

func (c *ListCmd) Run(ctx *Context) error {
	filter, err := parseFilter(c.Filter)
	if err != nil {
		return err
	}

	if err := ctx.Session.Refresh(context.Background()); err != nil {
		return err
	}

	query := strings.ToLower(strings.TrimSpace(c.Search))
	count := 0
	for _, todo := range ctx.Session.Todos() {
		if filter == "active" && todo.Completed {
			continue
		}
		if filter == "completed" && !todo.Completed {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(todo.Text), query) {
			continue
		}
		fmt.Println(FormatTodo(todo))
		count++
	}

	if count == 0 {
		fmt.Println("No todos found.")
	}
	return nil
}
