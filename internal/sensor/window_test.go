package sensor

import "testing"

func TestWindowInstantAlertSizeOne(t *testing.T) {
	w, err := NewWindow(1, 100)
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}
	if w.Push(false) {
		t.Fatal("expected not qualified")
	}
	if !w.Push(true) {
		t.Fatal("expected qualified on instant single-sample window")
	}
	if w.Push(false) {
		t.Fatal("expected qualified to clear once the triggering sample rolls off")
	}
}

func TestWindowSuppressesSingleSampleSpike(t *testing.T) {
	// S4: monitor_period=2s, threshold=100, sample_rate=1Hz -> window=2.
	w, err := NewWindow(2, 100)
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}
	if w.Push(true) {
		t.Fatal("single sample in a window of 2 at threshold 100 must not qualify")
	}
	if w.Push(false) {
		t.Fatal("spike should not persist")
	}
}

func TestWindowThresholdBelow100Qualifies(t *testing.T) {
	w, err := NewWindow(2, 50)
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}
	w.Push(true)
	if !w.Push(false) {
		t.Fatal("1/2 true samples should meet a 50%% threshold")
	}
}

func TestWindowRejectsInvalidConstruction(t *testing.T) {
	if _, err := NewWindow(0, 50); err == nil {
		t.Fatal("expected error for size 0")
	}
	if _, err := NewWindow(1, -1); err == nil {
		t.Fatal("expected error for negative threshold")
	}
	if _, err := NewWindow(1, 101); err == nil {
		t.Fatal("expected error for threshold > 100")
	}
}

func TestWindowReset(t *testing.T) {
	w, _ := NewWindow(3, 34)
	w.Push(true)
	w.Push(true)
	w.Reset()
	if w.Qualified() {
		t.Fatal("expected not qualified after reset")
	}
}
