package iface

import (
	"context"

	"github.com/ipfs/kubo-core/core/coreiface/options"
	"github.com/ipfs/kubo-core/path"
)

// IpnsEntry specifies the interface to IpnsEntries
type IpnsEntry interface {
	// Name returns IpnsEntry name
	Name() string
	// Value returns IpnsEntry value
	Value() path.Path
}

type IpnsResult struct {
	path.Path
	Err error
}

// NameAPI specifies the interface to the naming system.
//
// Names map to paths. A name published to /ipns/<other> is followed when
// resolving, up to the depth limit. Records are stored by the node's
// NameSystem, which may be local or backed by an external publisher.
type NameAPI interface {
	// Publish announces new name
	Publish(ctx context.Context, path path.Path, opts ...options.NamePublishOption) (IpnsEntry, error)

	// Resolve attempts to resolve the newest version of the specified name
	Resolve(ctx context.Context, name string, opts ...options.NameResolveOption) (path.Path, error)

	// Search is a version of Resolve which outputs paths as they are discovered,
	// reducing the time to first entry
	//
	// Note: by default, all paths read from the channel are considered unsafe,
	// except the latest (last path in channel read buffer).
	Search(ctx context.Context, name string, opts ...options.NameResolveOption) (<-chan IpnsResult, error)
}
