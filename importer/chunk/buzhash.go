package chunk

import (
	"io"

	boxochunk "github.com/ipfs/boxo/chunker"
)

// NewBuzhash returns a content-defined splitter based on a rolling buzhash.
func NewBuzhash(r io.Reader) Splitter {
	return boxochunk.NewBuzhash(r)
}
