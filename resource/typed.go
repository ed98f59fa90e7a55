package resource

// Typed gives type-safe access to one resource type in a shared Table.
type Typed[T any] struct {
	table  *Table
	typeID TypeID
}

// NewTyped binds typeID to T on table.
func NewTyped[T any](table *Table, typeID TypeID) *Typed[T] {
	return &Typed[T]{table: table, typeID: typeID}
}

// TypeID returns the bound type ID.
func (t *Typed[T]) TypeID() TypeID {
	return t.typeID
}

// Insert adds value and returns its handle.
func (t *Typed[T]) Insert(value T) (Handle, error) {
	return t.table.Insert(t.typeID, value)
}

// Get retrieves the value without borrowing it.
func (t *Typed[T]) Get(handle Handle) (T, bool) {
	var zero T
	v, ok := t.table.GetTyped(handle, t.typeID)
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Borrow lends the value; pair with Return.
func (t *Typed[T]) Borrow(handle Handle) (T, error) {
	var zero T
	v, err := t.table.Borrow(handle, t.typeID)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		_ = t.table.ReturnBorrow(handle, t.typeID)
		return zero, ErrTypeMismatch
	}
	return typed, nil
}

// Return ends a borrow.
func (t *Typed[T]) Return(handle Handle) error {
	return t.table.ReturnBorrow(handle, t.typeID)
}

// Take removes the value, transferring ownership to the caller.
func (t *Typed[T]) Take(handle Handle) (T, error) {
	var zero T
	v, err := t.table.Remove(handle, t.typeID)
	if err != nil {
		return zero, err
	}
	typed, _ := v.(T)
	return typed, nil
}

// Len returns the number of live values of this type.
func (t *Typed[T]) Len() int {
	return t.table.LenType(t.typeID)
}
