package intent

import "testing"

func TestClassifyFirstMatchWins(t *testing.T) {
	c := NewClassifier([]Rule{
		{"hostel fee", "hostel"},
		{"fee", "regulation"},
	})
	// Longer phrase ordered first takes precedence over its substring.
	category, ok := c.Classify("What is the hostel fee this year?")
	if !ok || category != "hostel" {
		t.Errorf("expected hostel, got %q (ok=%v)", category, ok)
	}
	category, ok = c.Classify("What is the exam fee?")
	if !ok || category != "regulation" {
		t.Errorf("expected regulation, got %q (ok=%v)", category, ok)
	}
}

func TestClassifyNoMatch(t *testing.T) {
	c := NewClassifier(nil)
	if category, ok := c.Classify("When does the library open?"); ok {
		t.Errorf("expected no match, got %q", category)
	}
}

func TestClassifyCaseInsensitive(t *testing.T) {
	c := NewClassifier(nil)
	category, ok := c.Classify("WHERE IS Block 32?")
	if !ok || category != "map" {
		t.Errorf("expected map, got %q (ok=%v)", category, ok)
	}
}

func TestClassifyDefaultRules(t *testing.T) {
	c := NewClassifier(nil)
	cases := map[string]string{
		"hostel mess menu":            "hostel",
		"scholarship refund deadline": "regulation",
		"parking near the gym":        "map",
	}
	for query, want := range cases {
		got, ok := c.Classify(query)
		if !ok || got != want {
			t.Errorf("Classify(%q) = %q (ok=%v), want %q", query, got, ok, want)
		}
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c := NewClassifier(nil)
	first, _ := c.Classify("exam rules in the hostel")
	for i := 0; i < 50; i++ {
		got, _ := c.Classify("exam rules in the hostel")
		if got != first {
			t.Fatalf("classification not deterministic: %q vs %q", got, first)
		}
	}
}
