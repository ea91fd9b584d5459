package decision

import (
	"sync"
	"testing"
)

func TestLedger_CheckAndAdd(t *testing.T) {
	l := NewLedger()

	if !l.CheckAndAdd("app-1", 3.00, 5.00) {
		t.Fatal("First charge under cap should be accepted")
	}
	if l.CheckAndAdd("app-1", 3.00, 5.00) {
		t.Fatal("Second charge over cap should be denied")
	}
	if got := l.Total("app-1"); got != 3.00 {
		t.Errorf("Denied charge must not change total, got %v", got)
	}

	// Exactly reaching the cap is allowed.
	if !l.CheckAndAdd("app-1", 2.00, 5.00) {
		t.Error("Charge reaching cap exactly should be accepted")
	}
}

func TestLedger_NoCap(t *testing.T) {
	l := NewLedger()
	if !l.CheckAndAdd("app-1", 100.00, 0) {
		t.Fatal("Zero cap means no limit")
	}
	if got := l.Total("app-1"); got != 100.00 {
		t.Errorf("Total should still be tracked without a cap, got %v", got)
	}
}

func TestLedger_PerAppIsolation(t *testing.T) {
	l := NewLedger()
	l.CheckAndAdd("app-1", 4.00, 5.00)

	if !l.CheckAndAdd("app-2", 4.00, 5.00) {
		t.Error("Apps must not share spend totals")
	}
}

func TestLedger_Reset(t *testing.T) {
	l := NewLedger()
	l.CheckAndAdd("app-1", 4.00, 5.00)
	l.Reset("app-1")
	if got := l.Total("app-1"); got != 0 {
		t.Errorf("Expected zero after reset, got %v", got)
	}
}

func TestLedger_ConcurrentCharges(t *testing.T) {
	l := NewLedger()

	// 100 concurrent unit charges against a cap of 50: exactly 50 may pass.
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.CheckAndAdd("app-1", 1.00, 50.00) {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if accepted != 50 {
		t.Errorf("Expected exactly 50 accepted charges, got %d", accepted)
	}
	if got := l.Total("app-1"); got != 50.00 {
		t.Errorf("Expected total 50.00, got %v", got)
	}
}
