package seriescache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/pierrec/lz4/v4"

	"github.com/dwellscope/dwellscope/pkg/timeseries"
)

// ErrCorruptBlock is returned when a cached block does not decode back to
// the sample count it was stored with.
var ErrCorruptBlock = errors.New("seriescache: corrupt series block")

// float64ByteSize is the number of bytes in a float64.
const float64ByteSize = 8

// block is one packed series: the grid parameters plus the sample values as
// a little-endian float64 block, LZ4-compressed when that actually shrinks
// it and raw otherwise.
type block struct {
	start      time.Time
	step       time.Duration
	data       []byte
	rawLen     int
	compressed bool
}

// packSeries encodes the series values into a block. Residency series are
// flat for long stretches, so LZ4 usually wins; incompressible values are
// stored raw.
func packSeries(series *timeseries.Series) block {
	raw := make([]byte, len(series.Values)*float64ByteSize)
	for i, v := range series.Values {
		binary.LittleEndian.PutUint64(raw[i*float64ByteSize:], math.Float64bits(v))
	}

	blk := block{start: series.Start, step: series.Step, rawLen: len(raw)}

	dst := make([]byte, lz4.CompressBlockBound(len(raw)))

	written, err := lz4.CompressBlock(raw, dst, nil)
	if err != nil || written == 0 || written >= len(raw) {
		blk.data = raw

		return blk
	}

	blk.data = dst[:written]
	blk.compressed = true

	return blk
}

// unpackSeries decodes a block into a new series with its own values slice.
func unpackSeries(blk block) (*timeseries.Series, error) {
	raw := blk.data

	if blk.compressed {
		buf := make([]byte, blk.rawLen)

		n, err := lz4.UncompressBlock(blk.data, buf)
		if err != nil {
			return nil, fmt.Errorf("seriescache: decompress block: %w", err)
		}

		if n != blk.rawLen {
			return nil, ErrCorruptBlock
		}

		raw = buf
	}

	if len(raw) != blk.rawLen || blk.rawLen%float64ByteSize != 0 {
		return nil, ErrCorruptBlock
	}

	values := make([]float64, blk.rawLen/float64ByteSize)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*float64ByteSize:]))
	}

	return &timeseries.Series{Start: blk.start, Step: blk.step, Values: values}, nil
}
