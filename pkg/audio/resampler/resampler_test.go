package resampler

import (
	"slices"
	"testing"
)

func TestRate_Bypass(t *testing.T) {
	var r Rate
	if err := r.Configure(16000, 16000); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if !r.Bypassed() {
		t.Fatal("equal rates should bypass")
	}

	in := []int16{1, 2, 3, -4}
	out, err := r.Process(in)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !slices.Equal(out, in) {
		t.Errorf("bypass changed data: %v", out)
	}
}

func TestRate_ZeroValueBypass(t *testing.T) {
	var r Rate
	if !r.Bypassed() {
		t.Fatal("zero value should bypass")
	}
	out, err := r.Process([]int16{7})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(out) != 1 || out[0] != 7 {
		t.Errorf("out = %v", out)
	}
}

func TestRate_Downsample(t *testing.T) {
	var r Rate
	if err := r.Configure(48000, 16000); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if r.Bypassed() {
		t.Fatal("unequal rates should not bypass")
	}

	// Feed a second of silence in 10ms blocks; the total output must be
	// close to a third of the input (filter latency allows a small lag).
	var total int
	for i := 0; i < 100; i++ {
		out, err := r.Process(make([]int16, 480))
		if err != nil {
			t.Fatalf("Process: %v", err)
		}
		total += len(out)
	}
	if total > 16000 || total < 15000 {
		t.Errorf("48k->16k produced %d samples for 48000 in; want about 16000", total)
	}
}

func TestRate_Reconfigure(t *testing.T) {
	var r Rate
	if err := r.Configure(48000, 16000); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := r.Configure(24000, 24000); err != nil {
		t.Fatalf("reconfigure: %v", err)
	}
	if !r.Bypassed() {
		t.Fatal("reconfigured equal rates should bypass")
	}
}
