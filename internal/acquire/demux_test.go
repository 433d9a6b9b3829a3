package acquire

import (
	"reflect"
	"testing"
)

func TestNewDemux_RejectsBadGeometry(t *testing.T) {
	if _, err := NewDemux(0, 1); err == nil {
		t.Error("expected error for zero channels")
	}
	if _, err := NewDemux(2, 0); err == nil {
		t.Error("expected error for decimation factor 0")
	}
}

func TestSplit_NoDecimation(t *testing.T) {
	d, _ := NewDemux(2, 1)

	// Three scans of two channels, scan-major interleaved.
	block := []float64{10, 20, 11, 21, 12, 22}
	got := d.Split(block)

	want := [][]float64{{10, 11, 12}, {20, 21, 22}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Split = %v, want %v", got, want)
	}
}

// TestSplit_ScanAlignment checks that decimated values on every channel
// originate from the same kept-scan indices {0, D, 2D, ...}.
func TestSplit_ScanAlignment(t *testing.T) {
	const channels = 3
	const factor = 4
	const scans = 10

	d, _ := NewDemux(channels, factor)

	// Encode scan and channel into each value so origin is checkable.
	block := make([]float64, scans*channels)
	for s := 0; s < scans; s++ {
		for ch := 0; ch < channels; ch++ {
			block[s*channels+ch] = float64(s*100 + ch)
		}
	}

	got := d.Split(block)
	keptScans := []int{0, 4, 8}
	for ch := 0; ch < channels; ch++ {
		if len(got[ch]) != len(keptScans) {
			t.Fatalf("channel %d: kept %d scans, want %d", ch, len(got[ch]), len(keptScans))
		}
		for i, s := range keptScans {
			if want := float64(s*100 + ch); got[ch][i] != want {
				t.Errorf("channel %d sample %d = %v, want %v (scan %d)", ch, i, got[ch][i], want, s)
			}
		}
	}
}

func TestSplit_DiscardsTrailingPartialScan(t *testing.T) {
	d, _ := NewDemux(2, 1)

	// Two full scans plus one orphan value.
	block := []float64{1, 2, 3, 4, 5}
	got := d.Split(block)

	want := [][]float64{{1, 3}, {2, 4}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Split = %v, want %v", got, want)
	}
}

func TestSplit_EmptyBlock(t *testing.T) {
	d, _ := NewDemux(4, 2)
	got := d.Split(nil)
	if len(got) != 4 {
		t.Fatalf("expected 4 channel slices, got %d", len(got))
	}
	for ch, seq := range got {
		if len(seq) != 0 {
			t.Errorf("channel %d: %v, want empty", ch, seq)
		}
	}
}

func TestSplit_FactorLargerThanBlock(t *testing.T) {
	d, _ := NewDemux(1, 10)
	got := d.Split([]float64{7, 8, 9})
	if !reflect.DeepEqual(got, [][]float64{{7}}) {
		t.Errorf("Split = %v, want [[7]] (only scan 0 kept)", got)
	}
}
