package syncchan

import (
	"testing"
)

func TestBarrierRoundTrip(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.CloseParent()
	defer p.CloseChild()

	done := make(chan error, 1)
	go func() {
		done <- p.Barrier(Child, Start)
	}()

	if err := p.Wait(Parent, Start); err != nil {
		t.Fatalf("parent Wait(Start): %v", err)
	}
	if err := p.Wake(Parent, Done); err != nil {
		t.Fatalf("parent Wake(Done): %v", err)
	}

	if err := <-done; err != nil {
		t.Fatalf("child Barrier: %v", err)
	}
}

func TestWaitSequenceMismatch(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.CloseParent()
	defer p.CloseChild()

	if err := p.Wake(Child, Done); err != nil {
		t.Fatalf("Wake: %v", err)
	}

	if err := p.Wait(Parent, Start); err == nil {
		t.Fatal("expected sequence mismatch error")
	}
}

func TestWaitOnClosedRemoteSucceeds(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.CloseParent()

	if err := p.CloseChild(); err != nil {
		t.Fatalf("CloseChild: %v", err)
	}

	if err := p.Wait(Parent, Start); err != nil {
		t.Fatalf("Wait on closed remote should succeed, got %v", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := p.CloseChild(); err != nil {
		t.Fatalf("first CloseChild: %v", err)
	}
	if err := p.CloseChild(); err != nil {
		t.Fatalf("second CloseChild: %v", err)
	}
	if err := p.CloseParent(); err != nil {
		t.Fatalf("CloseParent: %v", err)
	}
}
