// Package offline implements an exchange that never leaves the local node.
package offline

import (
	"context"

	"github.com/ipfs/kubo-core/exchange"

	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	format "github.com/ipfs/go-ipld-format"
)

// Exchange returns an exchange that reports every block as missing.
func Exchange() exchange.Interface {
	return offlineExchange{}
}

type offlineExchange struct{}

// GetBlock always fails: an offline node has nowhere else to look.
func (offlineExchange) GetBlock(_ context.Context, k cid.Cid) (blocks.Block, error) {
	return nil, format.ErrNotFound{Cid: k}
}

func (offlineExchange) NotifyNewBlocks(context.Context, ...blocks.Block) error {
	return nil
}

func (offlineExchange) Close() error {
	return nil
}
