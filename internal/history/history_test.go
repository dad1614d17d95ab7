package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func counter(name string, n *int) Intent {
	*n++
	return Intent{Name: name, Apply: func() { *n++ }, Undo: func() { *n-- }}
}

func TestStack_UndoRedo(t *testing.T) {
	s := NewStack(0)
	n := 0
	s.Save(counter("a", &n))
	s.Save(counter("b", &n))
	assert.Equal(t, 2, n)

	name, ok := s.Undo()
	assert.True(t, ok)
	assert.Equal(t, "b", name)
	assert.Equal(t, 1, n)

	name, ok = s.Redo()
	assert.True(t, ok)
	assert.Equal(t, "b", name)
	assert.Equal(t, 2, n)

	s.Undo()
	s.Save(counter("c", &n))
	assert.False(t, s.CanRedo(), "new edit drops the redo branch")

	s.Clear()
	assert.False(t, s.CanUndo())
	_, ok = s.Undo()
	assert.False(t, ok)
}

func TestStack_Limit(t *testing.T) {
	s := NewStack(2)
	n := 0
	for i := 0; i < 5; i++ {
		s.Save(counter("x", &n))
	}
	s.Undo()
	s.Undo()
	_, ok := s.Undo()
	assert.False(t, ok)
	assert.Equal(t, 3, n)
}

func TestStack_IgnoresZeroIntent(t *testing.T) {
	s := NewStack(1)
	s.Save(Intent{})
	assert.False(t, s.CanUndo())
}

func TestCompose_ReversesOnUndo(t *testing.T) {
	var log []string
	step := func(name string) Intent {
		return Intent{
			Name:  name,
			Apply: func() { log = append(log, "+"+name) },
			Undo:  func() { log = append(log, "-"+name) },
		}
	}
	in := Compose("edit", step("a"), Intent{}, step("b"))
	assert.Equal(t, "edit", in.Name)

	in.Undo()
	in.Apply()
	assert.Equal(t, []string{"-b", "-a", "+a", "+b"}, log)
	assert.True(t, Compose("empty", Intent{}).IsZero())
}
