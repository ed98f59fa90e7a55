package bridge

import (
	"fmt"
	"io"
)

// ThingC is an empty marker shape. It is declared but no operation uses it.
type ThingC struct{}

// Rot13Filter is a shared record with a single integer field.
// It is declared but no operation uses it.
type Rot13Filter struct {
	X int32
}

// ThingR wraps an unsigned size value. It is owned by the host and lent or
// transferred to the guest as a thing-r resource handle.
type ThingR struct {
	Value uint64
}

// SharedThing is the composite record passed to DoThing.
// Its fields are independent.
type SharedThing struct {
	Y *ThingR
	X *Demo
	Z int32
}

// PrintR is the host callback the guest invokes with a borrowed ThingR.
func PrintR(w io.Writer, r *ThingR) error {
	_, err := fmt.Fprintf(w, "called back with r=%d\n", r.Value)
	return err
}
