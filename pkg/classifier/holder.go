package classifier

import "sync/atomic"

// Holder publishes the model currently serving requests.
type Holder struct {
	current atomic.Pointer[Model]
}

// NewHolder returns a holder serving m.
func NewHolder(m *Model) *Holder {
	h := &Holder{}
	h.current.Store(m)
	return h
}

// Current returns the serving model. It may be nil before the first Swap.
func (h *Holder) Current() *Model {
	return h.current.Load()
}

// Swap replaces the serving model and returns the previous one.
func (h *Holder) Swap(m *Model) *Model {
	return h.current.Swap(m)
}
