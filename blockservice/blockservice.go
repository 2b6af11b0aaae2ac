// Package blockservice implements a BlockService interface that provides
// a single GetBlock/AddBlock interface that seamlessly retrieves data either
// locally or from a remote peer through the exchange.
package blockservice

import (
	"context"
	"fmt"
	"io"

	"github.com/ipfs/kubo-core/blocks/blockstore"
	"github.com/ipfs/kubo-core/exchange"
	"github.com/ipfs/kubo-core/thirdparty/verifcid"

	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
	format "github.com/ipfs/go-ipld-format"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("blockservice")

// BlockService is a hybrid block datastore. It stores data in a local
// datastore and may retrieve data from a remote Exchange.
type BlockService interface {
	io.Closer

	// Blockstore returns a reference to the underlying blockstore
	Blockstore() blockstore.Blockstore

	// Exchange returns a reference to the underlying exchange (usually bitswap)
	Exchange() exchange.Interface

	// AddBlock puts a given block to the underlying datastore
	AddBlock(ctx context.Context, o blocks.Block) error

	// AddBlocks adds a slice of blocks at the same time using batching
	// capabilities of the underlying datastore whenever possible.
	AddBlocks(ctx context.Context, b []blocks.Block) error

	// GetBlock gets the requested block.
	GetBlock(ctx context.Context, c cid.Cid) (blocks.Block, error)

	// GetBlocks does a batch request for the given cids, returning blocks as
	// they are found, in no particular order.
	GetBlocks(ctx context.Context, ks []cid.Cid) <-chan blocks.Block

	// DeleteBlock deletes the given block from the blockservice.
	DeleteBlock(ctx context.Context, o cid.Cid) error
}

type blockService struct {
	blockstore blockstore.Blockstore
	exchange   exchange.Interface
}

// New creates a BlockService with given datastore instance. A nil exchange
// makes every local miss final.
func New(bs blockstore.Blockstore, exchange exchange.Interface) BlockService {
	if exchange == nil {
		log.Debug("blockservice running in local (offline) mode.")
	}

	return &blockService{
		blockstore: bs,
		exchange:   exchange,
	}
}

func (s *blockService) Blockstore() blockstore.Blockstore {
	return s.blockstore
}

func (s *blockService) Exchange() exchange.Interface {
	return s.exchange
}

// AddBlock adds a particular block to the service, Putting it into the datastore.
func (s *blockService) AddBlock(ctx context.Context, o blocks.Block) error {
	c := o.Cid()
	if err := verifcid.ValidateCid(c); err != nil {
		return err
	}

	if err := s.blockstore.Put(ctx, o); err != nil {
		return err
	}

	log.Debugf("BlockService.BlockAdded %s", c)

	if s.exchange != nil {
		if err := s.exchange.NotifyNewBlocks(ctx, o); err != nil {
			log.Errorf("NotifyNewBlocks: %s", err.Error())
		}
	}

	return nil
}

func (s *blockService) AddBlocks(ctx context.Context, bs []blocks.Block) error {
	for _, b := range bs {
		if err := verifcid.ValidateCid(b.Cid()); err != nil {
			return err
		}
	}

	if err := s.blockstore.PutMany(ctx, bs); err != nil {
		return err
	}

	if s.exchange != nil {
		if err := s.exchange.NotifyNewBlocks(ctx, bs...); err != nil {
			log.Errorf("NotifyNewBlocks: %s", err.Error())
		}
	}
	return nil
}

// GetBlock retrieves a particular block from the service,
// Getting it from the datastore using the key (hash).
func (s *blockService) GetBlock(ctx context.Context, c cid.Cid) (blocks.Block, error) {
	if err := verifcid.ValidateCid(c); err != nil {
		return nil, err
	}

	block, err := s.blockstore.Get(ctx, c)
	if err == nil {
		return block, nil
	}

	if !format.IsNotFound(err) || s.exchange == nil {
		return nil, err
	}

	log.Debugf("BlockService: %s not found locally, going to the exchange", c)
	blk, err := s.exchange.GetBlock(ctx, c)
	if err != nil {
		return nil, err
	}

	if err := verifyFetched(c, blk); err != nil {
		return nil, err
	}

	// write back so later reads are local
	if err := s.blockstore.Put(ctx, blk); err != nil {
		return nil, err
	}
	return blk, nil
}

func verifyFetched(c cid.Cid, blk blocks.Block) error {
	if !blk.Cid().Equals(c) {
		return fmt.Errorf("exchange returned block %s for %s: %w", blk.Cid(), c, blockstore.ErrHashMismatch)
	}
	rehash, err := c.Prefix().Sum(blk.RawData())
	if err != nil {
		return err
	}
	if !rehash.Equals(c) {
		return fmt.Errorf("fetched data for %s: %w", c, blockstore.ErrHashMismatch)
	}
	return nil
}

// GetBlocks gets a list of blocks asynchronously and returns through
// the returned channel.
func (s *blockService) GetBlocks(ctx context.Context, ks []cid.Cid) <-chan blocks.Block {
	out := make(chan blocks.Block)
	go func() {
		defer close(out)
		for _, c := range ks {
			blk, err := s.GetBlock(ctx, c)
			if err != nil {
				log.Debugf("GetBlocks: %s: %s", c, err)
				continue
			}
			select {
			case out <- blk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// DeleteBlock deletes a block in the blockservice from the datastore
func (s *blockService) DeleteBlock(ctx context.Context, c cid.Cid) error {
	err := s.blockstore.DeleteBlock(ctx, c)
	if err == nil {
		log.Debugf("BlockService.BlockDeleted %s", c)
	}
	return err
}

func (s *blockService) Close() error {
	log.Debug("blockservice is shutting down...")
	if s.exchange == nil {
		return nil
	}
	return s.exchange.Close()
}
