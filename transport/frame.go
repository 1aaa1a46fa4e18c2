package transport

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionType defines the frame compression algorithm.
type CompressionType uint8

const (
	// CompressionNone indicates no compression.
	CompressionNone CompressionType = 0
	// CompressionLZ4 indicates LZ4 block compression (fast, good for
	// latency-sensitive result streams).
	CompressionLZ4 CompressionType = 1
	// CompressionZSTD indicates ZSTD block compression (better ratio
	// for large inline payloads).
	CompressionZSTD CompressionType = 2
)

const frameVersion = 1

// Block format for compressed frames:
// [UncompressedSize uint32][CompressedSize uint32][Data...]
// CompressedSize == 0 means the data is stored uncompressed.
const blockHeaderSize = 8

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// encodeFrame wraps a payload with the frame header and optional
// compression.
func encodeFrame(payload []byte, codecName string, ct CompressionType) ([]byte, error) {
	if len(codecName) > 255 {
		return nil, fmt.Errorf("transport: codec name %q too long", codecName)
	}

	block, err := compressBlock(payload, ct)
	if err != nil {
		return nil, err
	}

	frame := make([]byte, 0, 3+len(codecName)+len(block))
	frame = append(frame, frameVersion, byte(ct), byte(len(codecName)))
	frame = append(frame, codecName...)
	frame = append(frame, block...)
	return frame, nil
}

// decodeFrame strips the frame header and decompresses the payload.
func decodeFrame(frame []byte) (payload []byte, codecName string, err error) {
	if len(frame) < 3 {
		return nil, "", fmt.Errorf("transport: short frame (%d bytes)", len(frame))
	}
	if frame[0] != frameVersion {
		return nil, "", fmt.Errorf("transport: unsupported frame version %d", frame[0])
	}
	ct := CompressionType(frame[1])
	nameLen := int(frame[2])
	if len(frame) < 3+nameLen {
		return nil, "", fmt.Errorf("transport: frame truncated in codec name")
	}
	codecName = string(frame[3 : 3+nameLen])

	payload, err = decompressBlock(frame[3+nameLen:], ct)
	if err != nil {
		return nil, "", err
	}
	return payload, codecName, nil
}

func compressBlock(data []byte, ct CompressionType) ([]byte, error) {
	if ct == CompressionNone || len(data) == 0 {
		return data, nil
	}

	var compressed []byte
	switch ct {
	case CompressionLZ4:
		bound := lz4.CompressBlockBound(len(data))
		buf := make([]byte, bound)
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, fmt.Errorf("transport: lz4 compress: %w", err)
		}
		if n > 0 {
			compressed = buf[:n]
		}
	case CompressionZSTD:
		enc := getZstdEncoder()
		compressed = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, fmt.Errorf("transport: unknown compression type %d", ct)
	}

	// Store uncompressed if compression does not pay for itself.
	if len(compressed) == 0 || len(compressed) >= len(data) {
		block := make([]byte, blockHeaderSize+len(data))
		binary.LittleEndian.PutUint32(block[0:], uint32(len(data)))
		binary.LittleEndian.PutUint32(block[4:], 0)
		copy(block[blockHeaderSize:], data)
		return block, nil
	}

	block := make([]byte, blockHeaderSize+len(compressed))
	binary.LittleEndian.PutUint32(block[0:], uint32(len(data)))
	binary.LittleEndian.PutUint32(block[4:], uint32(len(compressed)))
	copy(block[blockHeaderSize:], compressed)
	return block, nil
}

func decompressBlock(block []byte, ct CompressionType) ([]byte, error) {
	if ct == CompressionNone {
		return block, nil
	}
	if len(block) < blockHeaderSize {
		return nil, fmt.Errorf("transport: short compressed block (%d bytes)", len(block))
	}

	uncompressedSize := binary.LittleEndian.Uint32(block[0:])
	compressedSize := binary.LittleEndian.Uint32(block[4:])
	body := block[blockHeaderSize:]

	if compressedSize == 0 {
		if len(body) != int(uncompressedSize) {
			return nil, fmt.Errorf("transport: stored block size %d, header says %d", len(body), uncompressedSize)
		}
		return body, nil
	}
	if len(body) != int(compressedSize) {
		return nil, fmt.Errorf("transport: compressed block size %d, header says %d", len(body), compressedSize)
	}

	switch ct {
	case CompressionLZ4:
		out := make([]byte, uncompressedSize)
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, fmt.Errorf("transport: lz4 decompress: %w", err)
		}
		return out[:n], nil
	case CompressionZSTD:
		dec := getZstdDecoder()
		out, err := dec.DecodeAll(body, make([]byte, 0, uncompressedSize))
		zstdDecoderPool.Put(dec)
		if err != nil {
			return nil, fmt.Errorf("transport: zstd decompress: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("transport: unknown compression type %d", ct)
	}
}
