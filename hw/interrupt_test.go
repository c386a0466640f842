package hw_test

import (
	"testing"

	"github.com/clktmr/rvfm/hw"
	"github.com/clktmr/rvfm/sim"
	rvfmtesting "github.com/clktmr/rvfm/testing"
)

func TestMain(m *testing.M) { rvfmtesting.TestMain(m) }

func TestVectorChain(t *testing.T) {
	m := rvfmtesting.NewMachine(t, "", sim.Config{})
	e := m.Run(0, func(core hw.Core) {
		v := hw.NewVector(core)
		var calls []string
		v.Chain(hw.IRQSoftware, func() { calls = append(calls, "a") })
		v.Chain(hw.IRQSoftware, func() { calls = append(calls, "b") })
		core.EnableIRQ(hw.IRQSoftware)
		core.EnableInterrupts()

		core.(*sim.Core).Raise(hw.IRQSoftware)
		core.Halt()
		if len(calls) != 2 || calls[0] != "a" || calls[1] != "b" {
			t.Errorf("got calls %v", calls)
		}
		if core.Pending()&hw.IRQSoftware != 0 {
			t.Error("interrupt not acknowledged")
		}

		calls = nil
		v.SetHandler(hw.IRQSoftware, func() { calls = append(calls, "c") })
		core.(*sim.Core).Raise(hw.IRQSoftware)
		core.Halt()
		if len(calls) != 1 || calls[0] != "c" {
			t.Errorf("got calls %v", calls)
		}
		if v.Handler(hw.IRQTimer) != nil {
			t.Error("timer handler set")
		}
	})
	<-e.Done()
}

func TestHandoff(t *testing.T) {
	var h hw.Handoff[string]
	if v, fresh := h.Take(); fresh || v != "" {
		t.Errorf("initial take: %q, %v", v, fresh)
	}
	h.Put("a")
	h.Put("b")
	if h.Latest() != "b" {
		t.Errorf("Latest: %q", h.Latest())
	}
	if v, fresh := h.Take(); !fresh || v != "b" {
		t.Errorf("take: %q, %v", v, fresh)
	}
	if v, fresh := h.Take(); fresh || v != "b" {
		t.Errorf("retake: %q, %v", v, fresh)
	}
	h.Put("c")
	if v, fresh := h.Take(); !fresh || v != "c" {
		t.Errorf("take after put: %q, %v", v, fresh)
	}
}

func TestFlag(t *testing.T) {
	var f hw.Flag
	f.Set()
	if !f.IsSet() || !f.TakeSet() || f.IsSet() || f.TakeSet() {
		t.Error("TakeSet didn't clear")
	}
	f.Set()
	f.Clear()
	if f.IsSet() {
		t.Error("Clear didn't clear")
	}
}
