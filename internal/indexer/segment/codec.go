package segment

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
)

// Deterministic CBOR so that identical input always produces identical
// segment bytes.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode

	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("segment: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("segment: CBOR decoder initialization failed: " + err.Error())
	}
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("segment: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("segment: zstd decoder initialization failed: " + err.Error())
	}
}

func marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// compressBlock encodes v as CBOR and compresses it.
func compressBlock(v any) ([]byte, error) {
	raw, err := marshal(v)
	if err != nil {
		return nil, err
	}
	return zstdEncoder.EncodeAll(raw, nil), nil
}

func decompressBlock(compressed []byte, v any) error {
	raw, err := zstdDecoder.DecodeAll(compressed, nil)
	if err != nil {
		return fmt.Errorf("zstd decompress: %w", err)
	}
	return unmarshal(raw, v)
}
