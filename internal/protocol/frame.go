package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// DefaultCompressMinBytes is the frame size from which frames are sent
// zstd-compressed.
const DefaultCompressMinBytes = 16 << 10

const maxFrameBytes = 64 << 20

var (
	frameEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	frameDecoder, _ = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxFrameBytes), zstd.WithDecoderConcurrency(0))
)

// EncodeFrame marshals v and compresses it when the JSON is at least
// compressMin bytes. compressMin <= 0 disables compression.
func EncodeFrame(v any, compressMin int) (data []byte, compressed bool, err error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, false, err
	}
	if compressMin <= 0 || len(raw) < compressMin {
		return raw, false, nil
	}
	return frameEncoder.EncodeAll(raw, make([]byte, 0, len(raw)/4)), true, nil
}

// DecodeFrame returns the JSON payload of a frame.
func DecodeFrame(data []byte, compressed bool) ([]byte, error) {
	if !compressed {
		return data, nil
	}
	raw, err := frameDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %v", ErrBadFrame, err)
	}
	return raw, nil
}
