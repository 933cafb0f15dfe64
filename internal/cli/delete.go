package cli

import (
	"context"
	"fmt"
)

type DeleteCmd struct {
	ID string `arg:"" help:"Todo ID."`
}

func (c *DeleteCmd) Run(ctx *Context) error {
	bg := context.Background()

	todo, err := ctx.Store.GetTodo(bg, ctx.Config.Owner, c.ID)
	if err != nil {
		return err
	}
	if err := ctx.Session.Delete(bg, c.ID); err != nil {
		return err
	}

	fmt.Printf("Deleted %q (ID: %s)\n", todo.Text, c.ID)
	return nil
}
