// Package verifbs wraps blockstores so that blocks built on weak hashes are
// neither stored nor served.
package verifbs

import (
	"context"

	bstore "github.com/ipfs/kubo-core/blocks/blockstore"
	"github.com/ipfs/kubo-core/thirdparty/verifcid"

	blocks "github.com/ipfs/go-block-format"
	cid "github.com/ipfs/go-cid"
)

func validateBlocks(blks ...blocks.Block) error {
	for _, b := range blks {
		if err := verifcid.ValidateCid(b.Cid()); err != nil {
			return err
		}
	}
	return nil
}

// VerifBS validates CIDs before every write and read.
type VerifBS struct {
	bstore.Blockstore
}

func (bs *VerifBS) Put(ctx context.Context, b blocks.Block) error {
	if err := validateBlocks(b); err != nil {
		return err
	}
	return bs.Blockstore.Put(ctx, b)
}

func (bs *VerifBS) PutMany(ctx context.Context, blks []blocks.Block) error {
	if err := validateBlocks(blks...); err != nil {
		return err
	}
	return bs.Blockstore.PutMany(ctx, blks)
}

func (bs *VerifBS) Get(ctx context.Context, c cid.Cid) (blocks.Block, error) {
	if err := verifcid.ValidateCid(c); err != nil {
		return nil, err
	}
	return bs.Blockstore.Get(ctx, c)
}

// VerifBSGC is VerifBS for stores that also carry the GC locks.
type VerifBSGC struct {
	bstore.GCBlockstore
}

// NewGC wraps bs, keeping its locker.
func NewGC(bs bstore.GCBlockstore) *VerifBSGC {
	return &VerifBSGC{bs}
}

func (bs *VerifBSGC) Put(ctx context.Context, b blocks.Block) error {
	return (&VerifBS{bs.GCBlockstore}).Put(ctx, b)
}

func (bs *VerifBSGC) PutMany(ctx context.Context, blks []blocks.Block) error {
	return (&VerifBS{bs.GCBlockstore}).PutMany(ctx, blks)
}

func (bs *VerifBSGC) Get(ctx context.Context, c cid.Cid) (blocks.Block, error) {
	return (&VerifBS{bs.GCBlockstore}).Get(ctx, c)
}
