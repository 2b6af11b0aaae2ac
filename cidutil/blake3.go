package cidutil

import (
	"hash"

	mhcore "github.com/multiformats/go-multihash/core"
	"github.com/zeebo/blake3"
)

func init() {
	mhcore.Register(mhcore.BLAKE3, func() hash.Hash { return blake3.New() })
}
