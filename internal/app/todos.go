package app

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/julianstephens/habitmap/internal/models"
)

func (a *App) AddTodo(text string) (models.Todo, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Todo{}, fmt.Errorf("%w: todo text is required", ErrInvalidInput)
	}

	todo := models.Todo{
		ID:        uuid.NewString(),
		Text:      text,
		CreatedAt: models.FormatTimestamp(a.now()),
	}
	err := a.mutate(func(doc *models.Document) error {
		doc.Todos = append(doc.Todos, todo)
		return nil
	})
	return todo, err
}

// ToggleTodo flips a todo's done state and returns the new state
func (a *App) ToggleTodo(id string) (bool, error) {
	var done bool
	err := a.mutate(func(doc *models.Document) error {
		i := todoIndex(doc, id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrTodoNotFound, id)
		}
		todo := &doc.Todos[i]
		todo.Done = !todo.Done
		todo.CompletedAt = nil
		if todo.Done {
			completed := models.FormatTimestamp(a.now())
			todo.CompletedAt = &completed
		}
		done = todo.Done
		return nil
	})
	return done, err
}

func (a *App) DeleteTodo(id string) error {
	return a.mutate(func(doc *models.Document) error {
		i := todoIndex(doc, id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrTodoNotFound, id)
		}
		doc.Todos = append(doc.Todos[:i], doc.Todos[i+1:]...)
		return nil
	})
}

func todoIndex(doc *models.Document, id string) int {
	for i, t := range doc.Todos {
		if t.ID == id {
			return i
		}
	}
	return -1
}
