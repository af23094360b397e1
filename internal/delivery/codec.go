package delivery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"lattice-agent/internal/model"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Supported content encodings.
const (
	EncodingGzip = "gzip"
	EncodingZstd = "zstd"
)

// zstd encoder and decoder are safe for concurrent use and reused across calls.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("delivery: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("delivery: zstd decoder initialization failed: " + err.Error())
	}
}

// EncodeEnvelope serializes env as JSON and compresses it.
func EncodeEnvelope(env *model.Envelope, encoding string) ([]byte, error) {
	if env.SchemaVersion == "" || env.ServerID == "" {
		return nil, fmt.Errorf("%w: envelope missing schema version or server id", ErrPermanent)
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPermanent, err)
	}
	return Compress(raw, encoding)
}

// DecodeEnvelope reverses EncodeEnvelope.
func DecodeEnvelope(data []byte, encoding string) (*model.Envelope, error) {
	raw, err := Decompress(data, encoding)
	if err != nil {
		return nil, err
	}
	var env model.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	return &env, nil
}

// Compress compresses raw with the named encoding.
func Compress(raw []byte, encoding string) ([]byte, error) {
	switch encoding {
	case EncodingGzip:
		var buf bytes.Buffer
		w, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(raw); err != nil {
			return nil, fmt.Errorf("gzip compress: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("gzip compress: %w", err)
		}
		return buf.Bytes(), nil
	case EncodingZstd:
		return zstdEncoder.EncodeAll(raw, nil), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}

// Decompress expands data compressed with the named encoding.
func Decompress(data []byte, encoding string) ([]byte, error) {
	switch encoding {
	case EncodingGzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip decompress: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	case EncodingZstd:
		out, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}
