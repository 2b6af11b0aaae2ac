package dshelp

import (
	"testing"

	cid "github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	c, err := cid.Decode("QmP63DkAFEnDYNjDYBpyNDfttu1fvUw99x1brscPzpqmmq")
	require.NoError(t, err)

	dsKey := CidToDsKey(c)
	require.Equal(t, 1, len(dsKey.Namespaces()))

	c2, err := DsKeyToCid(dsKey)
	require.NoError(t, err)
	require.True(t, c.Equals(c2))
}

func TestKeyKeepsCodec(t *testing.T) {
	c, err := cid.Decode("QmP63DkAFEnDYNjDYBpyNDfttu1fvUw99x1brscPzpqmmq")
	require.NoError(t, err)
	raw := cid.NewCidV1(cid.Raw, c.Hash())

	require.NotEqual(t, CidToDsKey(c), CidToDsKey(raw))
}
