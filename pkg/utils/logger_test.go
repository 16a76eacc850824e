package utils

import "testing"

func TestNewLogger(t *testing.T) {
	for _, debug := range []bool{true, false} {
		logger, err := NewLogger(debug)
		if err != nil {
			t.Fatalf("NewLogger(%v) failed: %v", debug, err)
		}
		if logger == nil {
			t.Fatalf("NewLogger(%v) returned nil", debug)
		}
	}
}

func TestNewNopLogger(t *testing.T) {
	if NewNopLogger() == nil {
		t.Fatal("NewNopLogger returned nil")
	}
}
