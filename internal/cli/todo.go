package cli

import (
	"fmt"
	"strings"

	"github.com/julianstephens/habitmap/internal/app"
	"github.com/julianstephens/habitmap/internal/models"
)

type TodoCmd struct {
	Add    TodoAddCmd    `cmd:"" help:"Add a todo."`
	List   TodoListCmd   `cmd:"" help:"List todos." default:"1"`
	Done   TodoDoneCmd   `cmd:"" help:"Toggle a todo's done state."`
	Delete TodoDeleteCmd `cmd:"" help:"Delete a todo."`
}

type TodoAddCmd struct {
	Text []string `arg:"" help:"Todo text."`
}

func (c *TodoAddCmd) Run(ctx *Context) error {
	if err := ctx.Activate(); err != nil {
		return err
	}
	todo, err := ctx.App.AddTodo(strings.Join(c.Text, " "))
	if err != nil {
		return err
	}
	ctx.printf("Added todo %s: %s\n", shortID(todo.ID), todo.Text)
	return nil
}

type TodoListCmd struct {
	Pending bool `help:"Show only todos that are not done."`
}

func (c *TodoListCmd) Run(ctx *Context) error {
	if err := ctx.Activate(); err != nil {
		return err
	}
	todos := ctx.App.Snapshot().Todos
	if len(todos) == 0 {
		ctx.printf("No todos found.\n")
		return nil
	}
	for _, t := range todos {
		if c.Pending && t.Done {
			continue
		}
		mark := " "
		if t.Done {
			mark = "x"
		}
		ctx.printf("[%s] %s  %s\n", mark, shortID(t.ID), t.Text)
	}
	return nil
}

type TodoDoneCmd struct {
	Todo string `arg:"" help:"Todo id, id prefix, or text."`
}

func (c *TodoDoneCmd) Run(ctx *Context) error {
	if err := ctx.Activate(); err != nil {
		return err
	}
	t, err := findTodo(ctx.App.Snapshot(), c.Todo)
	if err != nil {
		return err
	}
	done, err := ctx.App.ToggleTodo(t.ID)
	if err != nil {
		return err
	}
	if done {
		ctx.printf("✓ %s\n", t.Text)
	} else {
		ctx.printf("Reopened: %s\n", t.Text)
	}
	return nil
}

type TodoDeleteCmd struct {
	Todo string `arg:"" help:"Todo id, id prefix, or text."`
}

func (c *TodoDeleteCmd) Run(ctx *Context) error {
	if err := ctx.Activate(); err != nil {
		return err
	}
	t, err := findTodo(ctx.App.Snapshot(), c.Todo)
	if err != nil {
		return err
	}
	if err := ctx.App.DeleteTodo(t.ID); err != nil {
		return err
	}
	ctx.printf("Deleted todo: %s\n", t.Text)
	return nil
}

func findTodo(doc *models.Document, ref string) (models.Todo, error) {
	var matches []models.Todo
	for _, t := range doc.Todos {
		if t.ID == ref || strings.EqualFold(t.Text, ref) {
			return t, nil
		}
		if len(ref) >= 4 && strings.HasPrefix(t.ID, ref) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return models.Todo{}, fmt.Errorf("%w: %q", app.ErrTodoNotFound, ref)
	case 1:
		return matches[0], nil
	default:
		return models.Todo{}, fmt.Errorf("todo reference %q is ambiguous", ref)
	}
}
