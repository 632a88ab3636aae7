package stats

import (
	"math"
	"testing"
)

func TestSketch_Percentiles(t *testing.T) {
	values := make([]int64, 100)
	for i := range values {
		values[i] = int64(i + 1) // 1..100
	}

	got, err := Percentiles(values, 0.01)
	if err != nil {
		t.Fatalf("Percentiles: %v", err)
	}
	if len(got) != len(DefaultQuantiles) {
		t.Fatalf("expected %d estimates, got %d", len(DefaultQuantiles), len(got))
	}

	want := []float64{50, 90, 95, 99}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 2.0 {
			t.Errorf("p%v: expected near %v, got %f", DefaultQuantiles[i]*100, want[i], got[i])
		}
	}
}

func TestSketch_Empty(t *testing.T) {
	got, err := Percentiles(nil, 0.01)
	if err != nil {
		t.Fatalf("Percentiles: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}

	sk, err := NewSketch(0.01)
	if err != nil {
		t.Fatalf("NewSketch: %v", err)
	}
	if _, ok, _ := sk.Quantile(0.5); ok {
		t.Error("empty sketch should report no quantile")
	}
}

func TestSketch_CustomQuantiles(t *testing.T) {
	got, err := Percentiles([]int64{10, 20, 30, 40, 50}, 0.01, 0, 1)
	if err != nil {
		t.Fatalf("Percentiles: %v", err)
	}
	if math.Abs(got[0]-10) > 0.2 {
		t.Errorf("p0: expected near 10, got %f", got[0])
	}
	if math.Abs(got[1]-50) > 1.0 {
		t.Errorf("p100: expected near 50, got %f", got[1])
	}
}

func TestSketch_InvalidAccuracy(t *testing.T) {
	if _, err := NewSketch(0); err == nil {
		t.Error("expected error for zero accuracy")
	}
}

func TestSketch_Count(t *testing.T) {
	sk, err := NewSketch(0.01)
	if err != nil {
		t.Fatalf("NewSketch: %v", err)
	}
	for _, v := range []int64{-5, 0, 5} {
		if err := sk.Add(v); err != nil {
			t.Fatalf("Add(%d): %v", v, err)
		}
	}
	if sk.Count() != 3 {
		t.Errorf("expected count=3, got %d", sk.Count())
	}
	if sk.Accuracy() != 0.01 {
		t.Errorf("expected accuracy=0.01, got %f", sk.Accuracy())
	}
}
