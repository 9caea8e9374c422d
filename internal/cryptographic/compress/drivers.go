package compress

import (
	"encoding/base64"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

const (
	GzipDriver = "gzip"
	ZstdDriver = "zstd"
	S2Driver   = "s2"
	LZ4Driver  = "lz4"
)

func NewGzip() (Compressor, error) {
	return &streamCompressor{
		name: GzipDriver,
		newWriter: func(w io.Writer) (io.WriteCloser, error) {
			return gzip.NewWriterLevel(w, gzip.DefaultCompression)
		},
		newReader: func(r io.Reader) (io.Reader, error) {
			return gzip.NewReader(r)
		},
	}, nil
}

func NewLZ4() (Compressor, error) {
	return &streamCompressor{
		name: LZ4Driver,
		newWriter: func(w io.Writer) (io.WriteCloser, error) {
			return lz4.NewWriter(w), nil
		},
		newReader: func(r io.Reader) (io.Reader, error) {
			return lz4.NewReader(r), nil
		},
	}, nil
}

// zstd encoders and decoders are safe for concurrent use, so one pair is
// shared by every Zstd compressor.
var (
	zstdOnce    sync.Once
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
	zstdErr     error
)

type (
	Zstd struct{}

	// S2 uses the block format; blocks carry their decoded length.
	S2 struct{}
)

func NewZstd() (Compressor, error) {
	zstdOnce.Do(func() {
		zstdEncoder, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if zstdErr != nil {
			return
		}
		zstdDecoder, zstdErr = zstd.NewReader(nil)
	})
	if zstdErr != nil {
		return nil, fmt.Errorf("zstd init: %w", zstdErr)
	}
	return &Zstd{}, nil
}

func (c *Zstd) Compress(text string) (string, error) {
	return base64.StdEncoding.EncodeToString(zstdEncoder.EncodeAll([]byte(text), nil)), nil
}

func (c *Zstd) Decompress(text string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return "", fmt.Errorf("zstd decompress: %w", err)
	}
	out, err := zstdDecoder.DecodeAll(raw, nil)
	if err != nil {
		return "", fmt.Errorf("zstd decompress: %w", err)
	}
	return string(out), nil
}

func NewS2() (Compressor, error) {
	return &S2{}, nil
}

func (c *S2) Compress(text string) (string, error) {
	return base64.StdEncoding.EncodeToString(s2.Encode(nil, []byte(text))), nil
}

func (c *S2) Decompress(text string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return "", fmt.Errorf("s2 decompress: %w", err)
	}
	out, err := s2.Decode(nil, raw)
	if err != nil {
		return "", fmt.Errorf("s2 decompress: %w", err)
	}
	return string(out), nil
}
