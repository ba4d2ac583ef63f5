package reconciler

import "sync/atomic"

// VisibilityPolicy decides whether a notification is escalated to the OS.
// It never affects which messages are surfaced or the watermark.
type VisibilityPolicy interface {
	ShouldEscalate() bool
}

// FocusPolicy escalates only while the client is not focused.
type FocusPolicy struct {
	focused atomic.Bool
}

func NewFocusPolicy(focused bool) *FocusPolicy {
	p := &FocusPolicy{}
	p.focused.Store(focused)
	return p
}

func (p *FocusPolicy) SetFocused(focused bool) {
	p.focused.Store(focused)
}

// Toggle flips focus and returns the new state.
func (p *FocusPolicy) Toggle() bool {
	for {
		old := p.focused.Load()
		if p.focused.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

func (p *FocusPolicy) Focused() bool {
	return p.focused.Load()
}

func (p *FocusPolicy) ShouldEscalate() bool {
	return !p.focused.Load()
}

type neverEscalate struct{}

func (neverEscalate) ShouldEscalate() bool { return false }
