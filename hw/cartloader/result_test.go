package cartloader_test

import (
	"errors"
	"testing"

	"github.com/clktmr/rvfm/hw/cartloader"
)

func TestResultIsError(t *testing.T) {
	results := cartloader.Results()
	if len(results) != 12 {
		t.Fatalf("got %d results, want 12", len(results))
	}
	for _, r := range results {
		want := r != cartloader.None && r != cartloader.OK
		if got := r.IsError(); got != want {
			t.Errorf("%v.IsError() = %v, want %v", r, got, want)
		}
	}
}

func TestResultErr(t *testing.T) {
	if err := cartloader.OK.Err(); err != nil {
		t.Errorf("OK.Err() = %v", err)
	}
	if err := cartloader.None.Err(); !errors.Is(err, cartloader.ErrPending) {
		t.Errorf("None.Err() = %v, want ErrPending", err)
	}
	for _, r := range cartloader.Results() {
		if !r.IsError() {
			continue
		}
		if err := r.Err(); !errors.Is(err, r) {
			t.Errorf("%v.Err() = %v", r, err)
		}
	}
}

func TestResultString(t *testing.T) {
	seen := make(map[string]cartloader.Result)
	for _, r := range cartloader.Results() {
		s := r.String()
		if prev, ok := seen[s]; ok {
			t.Errorf("%d and %d share name %q", prev, r, s)
		}
		seen[s] = r
	}
}

func TestUnknownNames(t *testing.T) {
	if got := cartloader.Result(4000000000).String(); got != "result(4000000000)" {
		t.Errorf("got %q", got)
	}
	if got := cartloader.Opcode(42).String(); got != "Opcode(42)" {
		t.Errorf("got %q", got)
	}
	if got := cartloader.OpGetExtents.String(); got != "GetExtents" {
		t.Errorf("got %q", got)
	}
}
