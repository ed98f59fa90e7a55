// Package resource provides host-side handle tables for values that cross
// into the guest.
//
// A value the host hands to the guest is stored in a Table and the guest only
// ever sees its integer Handle. Handle 0 is reserved and always invalid.
//
// # Ownership
//
//	own    - Insert, then Take when the guest drops it
//	borrow - Borrow/Return around a call; the handle stays valid
//	drop   - Take (or Remove) destroys the entry, calling Dropper.Drop
//
// A handle with outstanding borrows cannot be removed.
//
// # Typed access
//
//	table := resource.NewTable()
//	boxes := resource.NewTyped[*Box](table, boxTypeID)
//
//	h, _ := boxes.Insert(&Box{})
//	b, err := boxes.Borrow(h)
//	defer boxes.Return(h)
//
// # Observers
//
//	table.Subscribe(resource.ObserverFunc(func(e resource.Event) {
//	    log.Printf("%s handle=%d", e.Type, e.Handle)
//	}))
//
// Close drops every remaining value. Tables are safe for concurrent use.
package resource
