package binlog

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strings"
	"time"
)

// Meta describes one acquisition run. The header half is written before
// streaming starts; the footer half is appended exactly once at stop.
type Meta struct {
	Start        time.Time
	SampleRate   float64
	ChannelNames []string
	SampleWidth  int
}

// Writer persists every received sample exactly once, in arrival order, as
// fixed-width little-endian floating-point values, with a human-readable
// metadata sidecar alongside. The log holds totalScans × numChannels
// values; the width is recorded only in the sidecar, never in the log.
type Writer struct {
	bin  *os.File
	meta *os.File

	numChannels int
	sampleWidth int
	start       time.Time

	bytesWritten int64
	scratch      []byte
	finalized    bool
}

// Create opens both files and writes the metadata header. If either open
// fails, nothing is left behind.
func Create(binPath, metaPath string, meta Meta) (*Writer, error) {
	if len(meta.ChannelNames) == 0 {
		return nil, fmt.Errorf("binlog: at least one channel required")
	}
	if meta.SampleWidth != 4 && meta.SampleWidth != 8 {
		return nil, fmt.Errorf("binlog: sample width must be 4 or 8, got %d", meta.SampleWidth)
	}

	bin, err := os.OpenFile(binPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("binlog: open data file: %w", err)
	}

	mf, err := os.OpenFile(metaPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		bin.Close()
		os.Remove(binPath)
		return nil, fmt.Errorf("binlog: open metadata file: %w", err)
	}

	w := &Writer{
		bin:         bin,
		meta:        mf,
		numChannels: len(meta.ChannelNames),
		sampleWidth: meta.SampleWidth,
		start:       meta.Start,
	}

	header := fmt.Sprintf(
		"# daqcapture stream metadata\n"+
			"start_time: %s\n"+
			"sample_rate_hz: %g\n"+
			"channel_count: %d\n"+
			"channels: %s\n"+
			"sample_width_bytes: %d\n"+
			"layout: scan-major interleaved, little-endian IEEE 754\n",
		meta.Start.Format(time.RFC3339Nano),
		meta.SampleRate,
		len(meta.ChannelNames),
		strings.Join(meta.ChannelNames, ", "),
		meta.SampleWidth,
	)
	if _, err := mf.WriteString(header); err != nil {
		w.discard()
		return nil, fmt.Errorf("binlog: write metadata header: %w", err)
	}
	// The header must be on disk before the first device command.
	if err := mf.Sync(); err != nil {
		w.discard()
		return nil, fmt.Errorf("binlog: sync metadata header: %w", err)
	}

	return w, nil
}

// discard closes and removes both files.
func (w *Writer) discard() {
	w.bin.Close()
	w.meta.Close()
	os.Remove(w.bin.Name())
	os.Remove(w.meta.Name())
}

// Abort removes both files without a footer. It is the rollback for a
// session start that failed after the files were created but before any
// sample arrived.
func (w *Writer) Abort() {
	if w.finalized {
		return
	}
	w.finalized = true
	w.discard()
}

// Append writes one raw interleaved block verbatim. The block length must
// be a multiple of the channel count; an empty block is a no-op. On a
// write failure the bytes already in the file stay intact.
func (w *Writer) Append(block []float64) error {
	if w.finalized {
		return fmt.Errorf("binlog: append after close")
	}
	if len(block)%w.numChannels != 0 {
		return fmt.Errorf("binlog: block length %d not a multiple of %d channels", len(block), w.numChannels)
	}
	if len(block) == 0 {
		return nil
	}

	need := len(block) * w.sampleWidth
	if cap(w.scratch) < need {
		w.scratch = make([]byte, need)
	}
	buf := w.scratch[:need]

	switch w.sampleWidth {
	case 4:
		for i, v := range block {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(float32(v)))
		}
	case 8:
		for i, v := range block {
			binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
		}
	}

	n, err := w.bin.Write(buf)
	w.bytesWritten += int64(n)
	if err != nil {
		return fmt.Errorf("binlog: append: %w", err)
	}
	return nil
}

// TotalScans derives the scan count from bytes actually written.
func (w *Writer) TotalScans() int64 {
	return w.bytesWritten / int64(w.numChannels*w.sampleWidth)
}

// Close appends the metadata footer and closes both files. Calling it
// again is a no-op.
func (w *Writer) Close() error {
	if w.finalized {
		return nil
	}
	w.finalized = true

	end := time.Now()
	footer := fmt.Sprintf(
		"end_time: %s\n"+
			"duration_s: %.3f\n"+
			"total_scans: %d\n",
		end.Format(time.RFC3339Nano),
		end.Sub(w.start).Seconds(),
		w.TotalScans(),
	)

	var firstErr error
	if _, err := w.meta.WriteString(footer); err != nil {
		firstErr = fmt.Errorf("binlog: write metadata footer: %w", err)
	}
	if err := w.meta.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("binlog: close metadata file: %w", err)
	}
	if err := w.bin.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("binlog: close data file: %w", err)
	}
	return firstErr
}
