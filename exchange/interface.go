// Package exchange defines the interface the core uses to fetch blocks it
// does not hold locally. Network protocols implement it outside this module.
package exchange

import (
	"context"
	"io"

	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
)

// Fetcher is an object that can be used to retrieve blocks.
type Fetcher interface {
	// GetBlock returns the block associated with a given cid.
	GetBlock(context.Context, cid.Cid) (blocks.Block, error)
}

// Interface is a Fetcher that is also told about blocks added locally so it
// can serve them to others.
type Interface interface {
	Fetcher

	// NotifyNewBlocks tells the exchange that new blocks are available and
	// can be served.
	NotifyNewBlocks(ctx context.Context, blocks ...blocks.Block) error

	io.Closer
}
