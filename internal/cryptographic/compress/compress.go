// Package compress holds the compressors applied to envelope payloads.
// Compressed bytes are returned base64 encoded so they fit a text frame.
package compress

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"sealed_socket/internal/cryptographic/registry"
)

type (
	Compressor interface {
		Compress(text string) (string, error)
		Decompress(text string) (string, error)
	}

	Factory func() (Compressor, error)

	// streamCompressor adapts io.Writer/io.Reader codecs.
	streamCompressor struct {
		name      string
		newWriter func(w io.Writer) (io.WriteCloser, error)
		newReader func(r io.Reader) (io.Reader, error)
	}
)

var drivers = registry.New[Factory]("compression")

func init() {
	Register(GzipDriver, NewGzip)
	Register(ZstdDriver, NewZstd)
	Register(S2Driver, NewS2)
	Register(LZ4Driver, NewLZ4)
}

func Register(name string, f Factory) {
	drivers.Register(name, f)
}

func IsValid(name string) bool {
	return drivers.IsValid(name)
}

func Drivers() []string {
	return drivers.Names()
}

func New(name string) (Compressor, error) {
	f, err := drivers.Lookup(name)
	if err != nil {
		return nil, err
	}
	return f()
}

func (c *streamCompressor) Compress(text string) (string, error) {
	var buf bytes.Buffer
	w, err := c.newWriter(&buf)
	if err != nil {
		return "", fmt.Errorf("%s compress: %w", c.name, err)
	}
	if _, err := io.WriteString(w, text); err != nil {
		w.Close()
		return "", fmt.Errorf("%s compress: %w", c.name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("%s compress: %w", c.name, err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func (c *streamCompressor) Decompress(text string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return "", fmt.Errorf("%s decompress: %w", c.name, err)
	}
	r, err := c.newReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("%s decompress: %w", c.name, err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%s decompress: %w", c.name, err)
	}
	return string(out), nil
}
