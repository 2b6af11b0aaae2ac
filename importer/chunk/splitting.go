// Package chunk implements streaming block splitters.
// Splitters read data from a reader and provide byte slices (chunks).
// The size and contents of these slices depend on the splitting method
// used.
package chunk

import (
	"context"
	"errors"
	"io"
	"iter"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("chunk")

// DefaultBlockSize is the chunk size that splitters produce (or aim to).
var DefaultBlockSize int64 = 1024 * 256

// ChunkSizeLimit is the largest chunk any splitter may be configured to
// produce. Larger blocks cannot be exchanged by other peers.
const ChunkSizeLimit int = 1048576

var (
	ErrSize         = errors.New("chunker size must be greater than 0")
	ErrSizeTooLarge = errors.New("chunker parameters may not exceed the maximum chunk size of 1048576")
	ErrRabinMin     = errors.New("rabin min must be greater than 16")
)

// A Splitter reads bytes from a Reader and creates "chunks" (byte slices)
// that can be used to build DAG nodes.
type Splitter interface {
	Reader() io.Reader
	NextBytes() ([]byte, error)
}

// SplitterGen is a splitter generator, given a reader.
type SplitterGen func(r io.Reader) Splitter

// DefaultSplitter returns a SizeSplitter with the DefaultBlockSize.
func DefaultSplitter(r io.Reader) Splitter {
	return NewSizeSplitter(r, DefaultBlockSize)
}

// SizeSplitterGen returns a SplitterGen function which will create
// a splitter with the given size when called.
func SizeSplitterGen(size int64) SplitterGen {
	return func(r io.Reader) Splitter {
		return NewSizeSplitter(r, size)
	}
}

// Chunks returns the lazy chunk sequence produced by s. Empty input yields
// exactly one empty chunk. The sequence stops at the first error, which is
// yielded with a nil chunk.
func Chunks(ctx context.Context, s Splitter) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		first := true
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			b, err := s.NextBytes()
			if err == io.EOF {
				if first {
					yield([]byte{}, nil)
				}
				return
			}
			if err != nil {
				log.Debugf("chunking failed: %s", err)
				yield(nil, err)
				return
			}
			first = false
			if !yield(b, nil) {
				return
			}
		}
	}
}

type sizeSplitterv2 struct {
	r    io.Reader
	size uint32
	err  error
}

// NewSizeSplitter returns a new size-based Splitter with the given block size.
func NewSizeSplitter(r io.Reader, size int64) Splitter {
	return &sizeSplitterv2{
		r:    r,
		size: uint32(size),
	}
}

// NextBytes produces a new chunk. Every chunk but the last is exactly the
// configured size.
func (ss *sizeSplitterv2) NextBytes() ([]byte, error) {
	if ss.err != nil {
		return nil, ss.err
	}

	full := make([]byte, ss.size)
	n, err := io.ReadFull(ss.r, full)
	switch err {
	case io.ErrUnexpectedEOF:
		ss.err = io.EOF
		return full[:n], nil
	case nil:
		return full, nil
	default:
		ss.err = err
		return nil, err
	}
}

// Reader returns the io.Reader associated to this Splitter.
func (ss *sizeSplitterv2) Reader() io.Reader {
	return ss.r
}
