// Package iface defines the core API, a set of interfaces used to interact
// with a content-addressed store node.
package iface

import (
	"context"

	"github.com/ipfs/kubo-core/core/coreiface/options"
	"github.com/ipfs/kubo-core/path"

	ipld "github.com/ipfs/go-ipld-format"
)

// CoreAPI defines an unified interface to the node for Go programs
type CoreAPI interface {
	// Unixfs returns an implementation of Unixfs API
	Unixfs() UnixfsAPI

	// Block returns an implementation of Block API
	Block() BlockAPI

	// Dag returns an implementation of Dag API
	Dag() APIDagService

	// Name returns an implementation of Name API
	Name() NameAPI

	// Object returns an implementation of Object API
	Object() ObjectAPI

	// Pin returns an implementation of Pin API
	Pin() PinAPI

	// ResolvePath resolves the path using Unixfs resolver. The returned path
	// is /ipfs/<cid> of the last node.
	ResolvePath(context.Context, path.Path) (path.Path, error)

	// ResolveNode resolves the path (if not resolved already) using Unixfs
	// resolver, gets and returns the resolved Node
	ResolveNode(context.Context, path.Path) (ipld.Node, error)

	// WithOptions creates new instance of CoreAPI based on this instance with
	// a set of options applied
	WithOptions(...options.ApiOption) (CoreAPI, error)
}
