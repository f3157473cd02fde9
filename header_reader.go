// Copyright IBM Corp. 2023, 2025
// SPDX-License-Identifier: MPL-2.0

package expurgate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// sniff reads up to n leading bytes of r for classification. It returns the
// bytes and a reader that yields the complete stream again. If r is seekable, it
// is rewound and returned as is, so that zip input can be read in place.
func sniff(r io.Reader, n int) ([]byte, io.Reader, error) {
	var start int64 = -1
	if s, ok := r.(io.Seeker); ok {
		if pos, err := s.Seek(0, io.SeekCurrent); err == nil {
			start = pos
		}
	}

	// read at least n bytes. If EOF, capture whatever was read.
	buf := make([]byte, n)
	m, err := io.ReadFull(r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, nil, fmt.Errorf("cannot read header: %w", err)
	}
	buf = buf[:m]

	if start >= 0 {
		if _, err := r.(io.Seeker).Seek(start, io.SeekStart); err != nil {
			return nil, nil, fmt.Errorf("cannot rewind input: %w", err)
		}
		return buf, r, nil
	}
	return buf, &headerReader{header: buf, r: r}, nil
}

// headerReader replays a consumed header before continuing with the source.
type headerReader struct {
	header []byte
	r      io.Reader
}

func (h *headerReader) Read(p []byte) (int, error) {
	if len(h.header) > 0 {
		n := copy(p, h.header)
		h.header = h.header[n:]
		return n, nil
	}
	return h.r.Read(p)
}

// peekTar checks whether the stream r begins with a tar header and returns a
// reader over the complete stream.
func peekTar(r io.Reader) (bool, io.Reader, error) {
	// errors of the decompressor must not be hidden behind io.ErrUnexpectedEOF
	buf := make([]byte, tarBlockSize)
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err == io.EOF {
			break
		}
		if err != nil {
			return false, nil, err
		}
	}
	buf = buf[:n]
	return isTar(buf), io.MultiReader(bytes.NewReader(buf), r), nil
}

// errInputTooLarge is returned by a countingReader whose limit was exceeded.
var errInputTooLarge = errors.New("maximum input size exceeded")

// countingReader counts the bytes read from R and returns an error if the
// limit L is exceeded before R is fully read. If L is -1, R is not limited.
type countingReader struct {
	R io.Reader // underlying reader
	L int64     // limit
	N int64     // number of bytes read
}

// Read reads from the underlying reader and fills up p.
func (c *countingReader) Read(p []byte) (int, error) {
	m := c.L - c.N
	if c.L == -1 || m > int64(len(p)) {
		m = int64(len(p))
	}
	if m == 0 && len(p) > 0 {
		// a source of exactly L bytes is not an error
		var probe [1]byte
		if n, err := c.R.Read(probe[:]); n == 0 && err == io.EOF {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("%w: %d bytes", errInputTooLarge, c.L)
	}
	n, err := c.R.Read(p[:m])
	c.N += int64(n)
	return n, err
}

// Offset returns how many bytes have been read from the underlying reader.
func (c *countingReader) Offset() int64 {
	return c.N
}

func newCountingReader(r io.Reader, limit int64) *countingReader {
	return &countingReader{R: r, L: limit}
}

// countingWriter counts the bytes written to W.
type countingWriter struct {
	W io.Writer
	N int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.W.Write(p)
	c.N += int64(n)
	return n, err
}
