package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTodos(t *testing.T) {
	a, _ := setupOfflineApp(t)

	todo, err := a.AddTodo("  buy running shoes ")
	require.NoError(t, err)
	assert.Equal(t, "buy running shoes", todo.Text)
	assert.False(t, todo.Done)
	assert.Nil(t, todo.CompletedAt)

	done, err := a.ToggleTodo(todo.ID)
	require.NoError(t, err)
	assert.True(t, done)
	got := a.Snapshot().Todos[0]
	require.NotNil(t, got.CompletedAt)

	done, err = a.ToggleTodo(todo.ID)
	require.NoError(t, err)
	assert.False(t, done)
	assert.Nil(t, a.Snapshot().Todos[0].CompletedAt)

	require.NoError(t, a.DeleteTodo(todo.ID))
	assert.Empty(t, a.Snapshot().Todos)

	assert.ErrorIs(t, a.DeleteTodo(todo.ID), ErrTodoNotFound)
	_, err = a.ToggleTodo("missing")
	assert.ErrorIs(t, err, ErrTodoNotFound)
	_, err = a.AddTodo("")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
