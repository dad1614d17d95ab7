// Package history carries reversible edit intents and a bounded undo/redo
// stack that can act as the history sink of a timeline.
package history

// Intent is a reversible edit. Apply re-does the edit, Undo reverts it.
type Intent struct {
	Name  string
	Apply func()
	Undo  func()
}

// IsZero reports whether the intent is empty.
func (i Intent) IsZero() bool {
	return i.Apply == nil && i.Undo == nil
}

// Compose folds intents into a single step. Undo reverts them in reverse
// order. Zero intents are skipped.
func Compose(name string, intents ...Intent) Intent {
	var steps []Intent
	for _, in := range intents {
		if !in.IsZero() {
			steps = append(steps, in)
		}
	}
	if len(steps) == 0 {
		return Intent{}
	}
	return Intent{
		Name: name,
		Apply: func() {
			for _, in := range steps {
				in.Apply()
			}
		},
		Undo: func() {
			for i := len(steps) - 1; i >= 0; i-- {
				steps[i].Undo()
			}
		},
	}
}

// Sink receives intents as edits happen.
type Sink interface {
	Save(Intent)
	Clear()
}

// Discard is a Sink that drops every intent.
type Discard struct{}

func (Discard) Save(Intent) {}
func (Discard) Clear() {}

// DefaultLimit bounds a Stack created with a non-positive limit.
const DefaultLimit = 200

// Stack is a bounded undo/redo stack. It is not safe for concurrent use.
type Stack struct {
	limit int
	undo  []Intent
	redo  []Intent
}

// NewStack returns a stack that keeps at most limit undo steps.
func NewStack(limit int) *Stack {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Stack{limit: limit}
}

// Save records an intent that has already been applied and drops the redo
// branch.
func (s *Stack) Save(i Intent) {
	if i.IsZero() {
		return
	}
	s.undo = append(s.undo, i)
	if len(s.undo) > s.limit {
		s.undo = s.undo[len(s.undo)-s.limit:]
	}
	s.redo = nil
}

// Clear forgets every step.
func (s *Stack) Clear() {
	s.undo = nil
	s.redo = nil
}

// Undo reverts the latest step and returns its name.
func (s *Stack) Undo() (string, bool) {
	if len(s.undo) == 0 {
		return "", false
	}
	i := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	i.Undo()
	s.redo = append(s.redo, i)
	return i.Name, true
}

// Redo re-applies the latest undone step and returns its name.
func (s *Stack) Redo() (string, bool) {
	if len(s.redo) == 0 {
		return "", false
	}
	i := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]
	i.Apply()
	s.undo = append(s.undo, i)
	return i.Name, true
}

func (s *Stack) CanUndo() bool { return len(s.undo) > 0 }
func (s *Stack) CanRedo() bool { return len(s.redo) > 0 }
