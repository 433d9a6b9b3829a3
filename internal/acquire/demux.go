package acquire

import "fmt"

// Demux splits one flat interleaved sample block into per-channel,
// decimated sequences for the display path. Decimation is scan-granular:
// scan indices {0, D, 2D, …} of the block are kept whole, so a kept value
// on any channel always comes from the same scan as the corresponding
// kept value on every other channel.
type Demux struct {
	channels int
	factor   int
}

// NewDemux creates a demultiplexer for the given channel count and
// decimation factor.
func NewDemux(channels, factor int) (*Demux, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("acquire: channel count must be > 0, got %d", channels)
	}
	if factor < 1 {
		return nil, fmt.Errorf("acquire: decimation factor must be >= 1, got %d", factor)
	}
	return &Demux{channels: channels, factor: factor}, nil
}

// Split returns one slice per channel holding the kept scans' values in
// scan order. A trailing partial scan is discarded, never buffered.
func (d *Demux) Split(block []float64) [][]float64 {
	scans := len(block) / d.channels
	kept := 0
	if scans > 0 {
		kept = (scans-1)/d.factor + 1
	}

	out := make([][]float64, d.channels)
	for ch := range out {
		out[ch] = make([]float64, 0, kept)
	}
	for s := 0; s < scans; s += d.factor {
		base := s * d.channels
		for ch := 0; ch < d.channels; ch++ {
			out[ch] = append(out[ch], block[base+ch])
		}
	}
	return out
}
