package reportstore

import (
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// ErrCorruptBlob is returned when a stored report blob does not decompress
// to its recorded length.
var ErrCorruptBlob = errors.New("reportstore: corrupt report blob")

// compressBlob LZ4-compresses raw, returning raw unchanged when compression
// does not shrink it. Report JSON repeats keys and flat values heavily, so
// the compressed path is the common one.
func compressBlob(raw []byte) []byte {
	dst := make([]byte, lz4.CompressBlockBound(len(raw)))

	written, err := lz4.CompressBlock(raw, dst, nil)
	if err != nil || written == 0 || written >= len(raw) {
		return raw
	}

	return dst[:written]
}

// decompressBlob reverses compressBlob. A blob whose length equals rawLen
// was stored uncompressed.
func decompressBlob(blob []byte, rawLen int) ([]byte, error) {
	if len(blob) == rawLen {
		return blob, nil
	}

	buf := make([]byte, rawLen)

	n, err := lz4.UncompressBlock(blob, buf)
	if err != nil {
		return nil, fmt.Errorf("decompress report blob: %w", err)
	}

	if n != rawLen {
		return nil, ErrCorruptBlob
	}

	return buf, nil
}
