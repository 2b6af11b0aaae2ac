package core

import (
	"context"
)

// NewMockNode constructs an IpfsNode over an in-memory repo for use in
// tests. It is offline and resolves names from memory.
func NewMockNode() (*IpfsNode, error) {
	return NewNode(context.Background(), &BuildCfg{
		NilRepo: true,
	})
}
