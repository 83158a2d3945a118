package com

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/sight/pkg/worker"
)

func TestSignals_Lookup(t *testing.T) {
	sigs := NewSignals()
	assert.Nil(t, sigs.Signal("modified"))

	sig := AddSignal[func(int)](sigs, "modified")
	assert.Same(t, sig, sigs.Signal("modified"))
	assert.Same(t, sig, SignalOf[func(int)](sigs, "modified"))
	assert.Nil(t, SignalOf[func(string)](sigs, "modified"))
	assert.Nil(t, SignalOf[func(int)](sigs, "missing"))

	other := NewSignal[func()]()
	sigs.Set("modified", other)
	assert.Same(t, other, sigs.Signal("modified"))

	AddSignal[func()](sigs, "added")
	assert.Equal(t, []string{"added", "modified"}, sigs.Keys())
}

func TestSlots_Lookup(t *testing.T) {
	slots := NewSlots()
	assert.Nil(t, slots.Slot("update"))

	s := slots.New("update", func(int) {})
	assert.Same(t, s, slots.Slot("update"))
	assert.Same(t, slots, s.Owner())
	assert.Same(t, s, SlotOf[func(int)](slots, "update"))
	assert.Nil(t, SlotOf[func()](slots, "update"))
	assert.Equal(t, []string{"update"}, slots.Keys())
}

func TestSlots_SetWorker(t *testing.T) {
	w := worker.New("w")
	defer w.Stop()

	slots := NewSlots()
	before := slots.New("before", func() {})
	slots.SetWorker(w)
	after := slots.New("after", func() {})

	assert.Same(t, w, before.Worker())
	assert.Same(t, w, after.Worker())
	assert.Same(t, w, slots.Worker())
}

func TestSignals_EmitFromSuppressesCaller(t *testing.T) {
	type holder struct {
		sigs  *Signals
		slots *Slots
		calls int
	}
	newHolder := func() *holder {
		h := &holder{sigs: NewSignals(), slots: NewSlots()}
		AddSignal[func()](h.sigs, "modified")
		h.slots.New("update", func() { h.calls++ })
		return h
	}
	a, b := newHolder(), newHolder()

	sig := a.sigs.Signal("modified")
	_, err := sig.Connect(a.slots.Slot("update"))
	require.NoError(t, err)
	_, err = sig.Connect(b.slots.Slot("update"))
	require.NoError(t, err)

	require.NoError(t, a.sigs.EmitFrom("modified", a.slots))
	assert.Equal(t, 0, a.calls)
	assert.Equal(t, 1, b.calls)

	// the suppression lasts only for that emit
	require.NoError(t, a.sigs.Emit("modified"))
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 2, b.calls)

	assert.ErrorContains(t, a.sigs.Emit("missing"), "signal not found: missing")
}

func TestSignals_AsyncEmitFrom(t *testing.T) {
	w := worker.New("w")
	defer w.Stop()

	sigs := NewSignals()
	AddSignal[func(string)](sigs, "changed")
	self := NewSlots()
	self.SetWorker(w)
	other := NewSlots()
	other.SetWorker(w)

	got := make(chan string, 2)
	self.New("on_changed", func(v string) { got <- "self:" + v })
	other.New("on_changed", func(v string) { got <- "other:" + v })
	_, _ = sigs.Signal("changed").Connect(self.Slot("on_changed"))
	_, _ = sigs.Signal("changed").Connect(other.Slot("on_changed"))

	require.NoError(t, sigs.AsyncEmitFrom("changed", self, "x"))
	assert.Equal(t, "other:x", <-got)

	// flush the worker so a wrongly scheduled self delivery would be visible
	require.NoError(t, worker.Run(w, func() error { return nil }).Wait())
	assert.Empty(t, got)
}

func TestRegistries_Close(t *testing.T) {
	sigs := NewSignals()
	slots := NewSlots()
	sig := AddSignal[func()](sigs, "s")
	slot := slots.New("s", func() {})
	_, err := sig.Connect(slot)
	require.NoError(t, err)

	slots.Close()
	assert.True(t, slot.Closed())
	assert.Zero(t, sig.NumConnections())

	_, err = sig.Connect(NewSlot(func() {}))
	require.NoError(t, err)
	sigs.Close()
	assert.Zero(t, sig.NumConnections())
}
