package gpu

import (
	"math"
	"testing"
)

func TestHistogram_SelectWhitepointUniform(t *testing.T) {
	// A solid 0.5 image with maximum 1.0 puts every sample in bin 128;
	// the whitepoint lands one bin-width above it.
	var bins [HistogramBins]uint32
	total := uint64(3 * 1920 * 1080)
	bins[128] = uint32(total)

	got := SelectWhitepoint(bins, 1.0, total)
	want := float32(1.0) / HistogramBins * 129
	if got != want {
		t.Errorf("SelectWhitepoint = %v, want %v", got, want)
	}
}

func TestHistogram_SelectWhitepointIgnoresOutliers(t *testing.T) {
	// 4096x4096 pixels at 5.0 with one pixel at 15.234: far fewer than
	// 0.01% of samples sit above 5.0, so the whitepoint tracks the
	// bulk, not the specular outlier.
	const maximum = 15.234
	total := uint64(3) * 4096 * 4096

	var bins [HistogramBins]uint32
	binWidth := float32(maximum) / HistogramBins
	bulkBin := int(5.0 / binWidth)
	bins[bulkBin] = uint32(total - 3)
	bins[HistogramBins-1] = 3

	got := SelectWhitepoint(bins, maximum, total)
	want := binWidth * float32(bulkBin+1)
	if got != want {
		t.Errorf("SelectWhitepoint = %v, want %v", got, want)
	}
	if got < 5.0 || got > 5.2 {
		t.Errorf("whitepoint %v should sit just above the 5.0 bulk", got)
	}
}

func TestHistogram_SelectWhitepointEdges(t *testing.T) {
	var empty [HistogramBins]uint32

	if got := SelectWhitepoint(empty, 2.5, 0); got != 2.5 {
		t.Errorf("zero samples: got %v, want the maximum", got)
	}
	if got := SelectWhitepoint(empty, 2.5, 100); got != 2.5 {
		t.Errorf("empty bins: got %v, want the maximum", got)
	}

	// Everything in the last bin selects the full maximum.
	var last [HistogramBins]uint32
	last[HistogramBins-1] = 300
	if got := SelectWhitepoint(last, 4.0, 300); got != 4.0 {
		t.Errorf("all in last bin: got %v, want 4.0", got)
	}
}

func TestHistogram_SelectWhitepointThreshold(t *testing.T) {
	// Bin 10 holds one sample fewer than 99.99% of the total and the
	// rest sit in bin 200: the cut must land on bin 200, not bin 10.
	total := uint64(1_000_000)
	below := uint32(float64(total) * WhitepointPercentile)

	var bins [HistogramBins]uint32
	bins[10] = below - 1
	bins[200] = uint32(total) - (below - 1)

	got := SelectWhitepoint(bins, 1.0, total)
	want := float32(1.0) / HistogramBins * 201
	if math.Abs(float64(got-want)) > 1e-6 {
		t.Errorf("SelectWhitepoint = %v, want %v", got, want)
	}
}
