// Package ordered provides a named, ordered sequence with O(1) name lookup.
//
// A List is mutated during wireup and frozen before it is shared. Mutation
// is not synchronized; a frozen List is safe for concurrent reads.
package ordered

import (
	"github.com/tjfontaine/webcore/internal/core/domain"
)

// Entry is one named element of a List.
type Entry[T any] struct {
	Name  string
	Value T
}

// List is an ordered sequence of uniquely named entries.
type List[T any] struct {
	kind    string
	entries []Entry[T]
	index   map[string]int
	frozen  bool
}

// New creates an empty list. kind names the element type in errors
// ("step", "action").
func New[T any](kind string) *List[T] {
	return &List[T]{
		kind:  kind,
		index: make(map[string]int),
	}
}

// Len returns the number of entries.
func (l *List[T]) Len() int { return len(l.entries) }

// Frozen reports whether the list rejects mutation.
func (l *List[T]) Frozen() bool { return l.frozen }

// Freeze makes every later mutation fail with domain.ErrFrozen.
func (l *List[T]) Freeze() { l.frozen = true }

// Names returns entry names in order.
func (l *List[T]) Names() []string {
	names := make([]string, len(l.entries))
	for i, e := range l.entries {
		names[i] = e.Name
	}
	return names
}

// Entries returns a copy of the entries in order.
func (l *List[T]) Entries() []Entry[T] {
	out := make([]Entry[T], len(l.entries))
	copy(out, l.entries)
	return out
}

// At returns the entry at position i.
func (l *List[T]) At(i int) Entry[T] { return l.entries[i] }

// IndexOf returns the position of name.
func (l *List[T]) IndexOf(name string) (int, bool) {
	i, ok := l.index[name]
	return i, ok
}

// Get returns the value stored under name.
func (l *List[T]) Get(name string) (T, bool) {
	i, ok := l.index[name]
	if !ok {
		var zero T
		return zero, false
	}
	return l.entries[i].Value, true
}

// Append adds an entry at the end.
func (l *List[T]) Append(name string, v T) error {
	if err := l.checkNew(name); err != nil {
		return err
	}
	l.insertAt(len(l.entries), name, v)
	return nil
}

// InsertBefore adds an entry immediately before anchor.
func (l *List[T]) InsertBefore(anchor, name string, v T) error {
	return l.insertRelative(anchor, name, v, 0)
}

// InsertAfter adds an entry immediately after anchor.
func (l *List[T]) InsertAfter(anchor, name string, v T) error {
	return l.insertRelative(anchor, name, v, 1)
}

// Remove deletes the named entry.
func (l *List[T]) Remove(name string) error {
	if l.frozen {
		return domain.ErrFrozen
	}
	i, ok := l.index[name]
	if !ok {
		return &domain.NotFoundError{Kind: l.kind, Name: name}
	}
	l.entries = append(l.entries[:i], l.entries[i+1:]...)
	delete(l.index, name)
	l.reindex(i)
	return nil
}

func (l *List[T]) insertRelative(anchor, name string, v T, offset int) error {
	if l.frozen {
		return domain.ErrFrozen
	}
	pos, ok := l.index[anchor]
	if !ok {
		return &domain.AnchorNotFoundError{Anchor: anchor}
	}
	if err := l.checkNew(name); err != nil {
		return err
	}
	l.insertAt(pos+offset, name, v)
	return nil
}

func (l *List[T]) checkNew(name string) error {
	if l.frozen {
		return domain.ErrFrozen
	}
	if name == "" {
		return domain.ErrEmptyName
	}
	if _, exists := l.index[name]; exists {
		return &domain.DuplicateNameError{Kind: l.kind, Name: name}
	}
	return nil
}

func (l *List[T]) insertAt(pos int, name string, v T) {
	l.entries = append(l.entries, Entry[T]{})
	copy(l.entries[pos+1:], l.entries[pos:])
	l.entries[pos] = Entry[T]{Name: name, Value: v}
	l.reindex(pos)
}

// reindex refreshes positions from i to the end.
func (l *List[T]) reindex(from int) {
	for i := from; i < len(l.entries); i++ {
		l.index[l.entries[i].Name] = i
	}
}
