package offline

import (
	"context"
	"testing"

	blocks "github.com/ipfs/go-block-format"
	format "github.com/ipfs/go-ipld-format"
	"github.com/stretchr/testify/require"
)

func TestBlockReturnsErr(t *testing.T) {
	off := Exchange()
	_, err := off.GetBlock(context.Background(), blocks.NewBlock([]byte("block")).Cid())
	require.True(t, format.IsNotFound(err))
	require.NoError(t, off.NotifyNewBlocks(context.Background(), blocks.NewBlock([]byte("x"))))
	require.NoError(t, off.Close())
}
