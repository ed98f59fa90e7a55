package resource

import (
	"sync"
)

// Table maps handles to host values and reports lifecycle events to observers.
type Table struct {
	backend   *LocalBackend
	observers []Observer
	obsMu     sync.RWMutex
}

// NewTable creates a new table with a LocalBackend.
func NewTable() *Table {
	return &Table{
		backend: NewLocalBackend(),
	}
}

// Insert adds a value and returns its handle.
func (t *Table) Insert(typeID TypeID, value any) (Handle, error) {
	handle, err := t.backend.Create(typeID, value)
	if err != nil {
		return 0, err
	}

	t.notify(Event{
		Type:   EventCreated,
		Handle: handle,
		TypeID: typeID,
		Value:  value,
	})

	return handle, nil
}

// Get retrieves a value by handle.
func (t *Table) Get(handle Handle) (any, bool) {
	v, _, ok := t.backend.Get(handle)
	return v, ok
}

// GetTyped retrieves a value only if it matches the expected type.
func (t *Table) GetTyped(handle Handle, typeID TypeID) (any, bool) {
	v, actual, ok := t.backend.Get(handle)
	if !ok || actual != typeID {
		return nil, false
	}
	return v, true
}

// Borrow lends the value behind handle. Each Borrow must be paired with
// ReturnBorrow; the handle cannot be removed while borrowed.
func (t *Table) Borrow(handle Handle, typeID TypeID) (any, error) {
	v, err := t.backend.Borrow(handle, typeID)
	if err != nil {
		return nil, err
	}
	t.notify(Event{Type: EventBorrowed, Handle: handle, TypeID: typeID, Value: v})
	return v, nil
}

// ReturnBorrow ends a borrow started by Borrow.
func (t *Table) ReturnBorrow(handle Handle, typeID TypeID) error {
	if err := t.backend.ReturnBorrow(handle); err != nil {
		return err
	}
	t.notify(Event{Type: EventBorrowReturned, Handle: handle, TypeID: typeID})
	return nil
}

// Remove drops a resource and returns its value, calling Drop when the value
// implements Dropper.
func (t *Table) Remove(handle Handle, typeID TypeID) (any, error) {
	value, err := t.backend.Drop(handle, typeID)
	if err != nil {
		return nil, err
	}

	if d, ok := value.(Dropper); ok {
		d.Drop()
	}

	t.notify(Event{
		Type:   EventDropped,
		Handle: handle,
		TypeID: typeID,
		Value:  value,
	})

	return value, nil
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Len returns the number of active resources.
func (t *Table) Len() int {
	return t.backend.Len()
}

// LenType returns the number of active resources of one type.
func (t *Table) LenType(typeID TypeID) int {
	n := 0
	t.backend.Each(func(_ Handle, id TypeID, _ any) bool {
		if id == typeID {
			n++
		}
		return true
	})
	return n
}

// Close releases all resources and stops accepting inserts.
func (t *Table) Close() error {
	return t.backend.Close()
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
