package scope

import (
	"io"

	"github.com/ajitpratap0/harvest/pkg/compression"
)

type compressed struct {
	Scope
	codec compression.Codec
}

// WithCompression wraps s so that every artifact is written through codec
// and gets the codec's file extension. Sub-scopes inherit the codec.
func WithCompression(s Scope, codec compression.Codec) Scope {
	if codec == nil || codec.Algorithm() == compression.None {
		return s
	}
	return &compressed{Scope: s, codec: codec}
}

func (c *compressed) Cd(name string) (Scope, error) {
	child, err := c.Scope.Cd(name)
	if err != nil {
		return nil, err
	}
	return &compressed{Scope: child, codec: c.codec}, nil
}

func (c *compressed) Create(name string) (io.WriteCloser, error) {
	raw, err := c.Scope.Create(name + c.codec.Extension())
	if err != nil {
		return nil, err
	}
	w, err := c.codec.Writer(raw)
	if err != nil {
		_ = raw.Close()
		return nil, err
	}
	return &stackedWriter{WriteCloser: w, raw: raw}, nil
}

// stackedWriter closes the codec stream before the underlying artifact.
type stackedWriter struct {
	io.WriteCloser
	raw io.WriteCloser
}

func (s *stackedWriter) Close() error {
	err := s.WriteCloser.Close()
	if rawErr := s.raw.Close(); err == nil {
		err = rawErr
	}
	return err
}
