package binlog

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// ReadAll reconstructs the (scan × channel) matrix from a binary log. The
// channel count and sample width are the only out-of-band knowledge a
// reader needs.
func ReadAll(binPath string, numChannels, sampleWidth int) ([][]float64, error) {
	if numChannels <= 0 {
		return nil, fmt.Errorf("binlog: channel count must be > 0, got %d", numChannels)
	}
	if sampleWidth != 4 && sampleWidth != 8 {
		return nil, fmt.Errorf("binlog: sample width must be 4 or 8, got %d", sampleWidth)
	}

	data, err := os.ReadFile(binPath)
	if err != nil {
		return nil, fmt.Errorf("binlog: read data file: %w", err)
	}

	scanBytes := numChannels * sampleWidth
	if len(data)%scanBytes != 0 {
		return nil, fmt.Errorf("binlog: file size %d is not a multiple of scan size %d", len(data), scanBytes)
	}

	numScans := len(data) / scanBytes
	scans := make([][]float64, numScans)
	for s := 0; s < numScans; s++ {
		row := make([]float64, numChannels)
		for ch := 0; ch < numChannels; ch++ {
			off := s*scanBytes + ch*sampleWidth
			switch sampleWidth {
			case 4:
				row[ch] = float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off:])))
			case 8:
				row[ch] = math.Float64frombits(binary.LittleEndian.Uint64(data[off:]))
			}
		}
		scans[s] = row
	}
	return scans, nil
}

// FileMeta is the parsed content of a metadata sidecar.
type FileMeta struct {
	Start        time.Time
	End          time.Time
	SampleRate   float64
	ChannelNames []string
	SampleWidth  int
	TotalScans   int64
	Duration     float64
}

// ParseMeta reads a metadata sidecar back. A file without a footer (an
// unclean stop) still yields the header fields; footer fields stay zero.
func ParseMeta(metaPath string) (*FileMeta, error) {
	f, err := os.Open(metaPath)
	if err != nil {
		return nil, fmt.Errorf("binlog: open metadata file: %w", err)
	}
	defer f.Close()

	meta := &FileMeta{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case "start_time":
			meta.Start, err = time.Parse(time.RFC3339Nano, value)
		case "end_time":
			meta.End, err = time.Parse(time.RFC3339Nano, value)
		case "sample_rate_hz":
			meta.SampleRate, err = strconv.ParseFloat(value, 64)
		case "channels":
			for _, name := range strings.Split(value, ",") {
				meta.ChannelNames = append(meta.ChannelNames, strings.TrimSpace(name))
			}
		case "sample_width_bytes":
			meta.SampleWidth, err = strconv.Atoi(value)
		case "total_scans":
			meta.TotalScans, err = strconv.ParseInt(value, 10, 64)
		case "duration_s":
			meta.Duration, err = strconv.ParseFloat(value, 64)
		}
		if err != nil {
			return nil, fmt.Errorf("binlog: metadata field %s: %w", key, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("binlog: read metadata file: %w", err)
	}

	if len(meta.ChannelNames) == 0 {
		return nil, fmt.Errorf("binlog: metadata file %s has no channels", metaPath)
	}
	return meta, nil
}
