package database

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/workaholic-kv/workaholic/internal/content"
)

const (
	encodingIdentity = "identity"
	encodingZstd     = "zstd"

	// Text values shorter than this are stored as-is.
	compressThreshold = 1024
)

var (
	metadataEncMode cbor.EncMode
	metadataDecMode cbor.DecMode

	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error

	// Sorted map keys and smallest integer encoding: the same metadata
	// always yields identical bytes, so rebuilds produce identical rows.
	// Times are written as RFC 3339 text; the default integer seconds would
	// read back as Unix milliseconds through content.Metadata.Time.
	encOpts := cbor.CoreDetEncOptions()
	encOpts.Time = cbor.TimeRFC3339Nano
	metadataEncMode, err = encOpts.EncMode()
	if err != nil {
		panic("database: CBOR encoder initialization failed: " + err.Error())
	}

	metadataDecMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("database: CBOR decoder initialization failed: " + err.Error())
	}

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("database: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("database: zstd decoder initialization failed: " + err.Error())
	}
}

func encodeMetadata(meta content.Metadata) ([]byte, error) {
	if meta == nil {
		return nil, nil
	}
	data, err := metadataEncMode.Marshal(map[string]any(meta))
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return data, nil
}

func decodeMetadata(data []byte) (content.Metadata, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var meta map[string]any
	if err := metadataDecMode.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return content.Metadata(meta), nil
}

// compressValue zstd-compresses large text values. Binary values are
// already-compressed image formats and are stored untouched.
func compressValue(value []byte, binary bool) ([]byte, string) {
	if binary || len(value) < compressThreshold {
		return value, encodingIdentity
	}
	compressed := zstdEncoder.EncodeAll(value, nil)
	if len(compressed) >= len(value) {
		return value, encodingIdentity
	}
	return compressed, encodingZstd
}

func decompressValue(value []byte, encoding string) ([]byte, error) {
	switch encoding {
	case "", encodingIdentity:
		return value, nil
	case encodingZstd:
		out, err := zstdDecoder.DecodeAll(value, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown value encoding %q", encoding)
	}
}
