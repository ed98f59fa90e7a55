package bridge

import "context"

// Demo is an opaque handle to a demo object owned by the guest.
type Demo struct {
	bridge *Bridge
	rep    uint32
}

// Valid reports whether d can still be used.
func (d *Demo) Valid() bool {
	return d != nil && d.rep != 0 && !d.bridge.closed
}

// Close drops the guest object. Closing a moved or closed demo is a no-op.
func (d *Demo) Close(ctx context.Context) error {
	if d == nil || d.rep == 0 {
		return nil
	}
	return d.bridge.closeDemo(ctx, d)
}
