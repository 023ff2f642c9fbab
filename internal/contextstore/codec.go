package contextstore

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"framecast/internal/stagedoc"
)

// errIncompressible signals that the codec produced no saving at all.
var errIncompressible = errors.New("data is incompressible")

// zstd.Encoder and zstd.Decoder are safe for concurrent use, so one of each
// is shared by every store.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("contextstore: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("contextstore: zstd decoder initialization failed: " + err.Error())
	}
}

// encodeResult is the byte form chosen for storage.
type encodeResult struct {
	data       []byte
	compressed bool
	codec      stagedoc.Codec
}

// compressIfBeneficial keeps the compressed form only when it is strictly
// smaller than ratio times the raw size.
func compressIfBeneficial(raw []byte, codec stagedoc.Codec, ratio float64) (encodeResult, error) {
	plain := encodeResult{data: raw, codec: stagedoc.CodecNone}
	if codec == stagedoc.CodecNone || len(raw) == 0 {
		return plain, nil
	}
	packed, err := compress(raw, codec)
	if errors.Is(err, errIncompressible) {
		return plain, nil
	}
	if err != nil {
		return encodeResult{}, err
	}
	if float64(len(packed)) >= ratio*float64(len(raw)) {
		return plain, nil
	}
	return encodeResult{data: packed, compressed: true, codec: codec}, nil
}

func compress(data []byte, codec stagedoc.Codec) ([]byte, error) {
	switch codec {
	case stagedoc.CodecNone:
		return data, nil
	case stagedoc.CodecZstd:
		packed := zstdEncoder.EncodeAll(data, nil)
		if len(packed) >= len(data) {
			return nil, errIncompressible
		}
		return packed, nil
	case stagedoc.CodecLZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		written, err := lz4.CompressBlock(data, dst, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		// CompressBlock returns 0 for incompressible input.
		if written == 0 || written >= len(data) {
			return nil, errIncompressible
		}
		return dst[:written], nil
	default:
		return nil, fmt.Errorf("unsupported codec %q", codec)
	}
}

// decompress reverses compress. rawSize must match the original length.
func decompress(data []byte, codec stagedoc.Codec, rawSize int) ([]byte, error) {
	switch codec {
	case stagedoc.CodecNone, "":
		if len(data) != rawSize {
			return nil, fmt.Errorf("stored size %d does not match expected %d", len(data), rawSize)
		}
		return data, nil
	case stagedoc.CodecZstd:
		out, err := zstdDecoder.DecodeAll(data, make([]byte, 0, rawSize))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(out) != rawSize {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(out), rawSize)
		}
		return out, nil
	case stagedoc.CodecLZ4:
		out := make([]byte, rawSize)
		read, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != rawSize {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, rawSize)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported codec %q", codec)
	}
}

// fileSuffix is appended to offloaded object names for compressed bytes.
func fileSuffix(codec stagedoc.Codec) string {
	switch codec {
	case stagedoc.CodecZstd:
		return ".zst"
	case stagedoc.CodecLZ4:
		return ".lz4"
	default:
		return ""
	}
}
