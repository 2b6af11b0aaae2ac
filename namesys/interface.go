/*
Package namesys implements resolvers and publishers for the naming system.

A name maps to a path, which may point at content (/ipfs/...) or at another
name (/ipns/...). Resolution follows /ipns/ values until it reaches content
or the depth limit:

	/ipns/site -> /ipns/release -> /ipfs/<cid>

The core never stores names itself. Nodes are handed a NameSystem at build
time; NewMemory returns an in-process one backed by a datastore.
*/
package namesys

import (
	"context"
	"errors"

	opts "github.com/ipfs/kubo-core/core/coreiface/options/namesys"
	path "github.com/ipfs/kubo-core/path"
)

// ErrResolveFailed signals an error when attempting to resolve.
var ErrResolveFailed = errors.New("could not resolve name")

// ErrResolveRecursion signals a recursion-depth limit.
var ErrResolveRecursion = errors.New(
	"could not resolve name (recursion limit exceeded)")

// ErrPublishFailed signals an error when attempting to publish.
var ErrPublishFailed = errors.New("could not publish name")

// ErrExpiredRecord is returned for a record past its EOL.
var ErrExpiredRecord = errors.New("record has expired")

// ErrInvalidName is returned for names that are empty or contain a slash.
var ErrInvalidName = errors.New("invalid name")

// NameSystem represents a cohesive name publishing and resolving system.
type NameSystem interface {
	Resolver
	Publisher
}

// Result is the return type for Resolver.ResolveAsync.
type Result struct {
	Path path.Path
	Err  error
}

// Resolver is an object capable of resolving names.
type Resolver interface {
	// Resolve performs a recursive lookup, returning the dereferenced
	// path.  For example, if site is published to /ipns/release and
	// release to /ipfs/<cid>, then
	//
	//   Resolve(ctx, "/ipns/site")
	//
	// will resolve both names, returning /ipfs/<cid>.
	//
	// There is a default depth-limit to avoid infinite recursion.  Most
	// users will be fine with this default limit, but if you need to
	// adjust the limit you can specify it as an option.
	Resolve(ctx context.Context, name string, options ...opts.ResolveOpt) (value path.Path, err error)

	// ResolveAsync performs recursive name lookup, like Resolve, but it
	// returns every step of the resolution over the returned channel.
	// The channel is closed once resolution finishes.
	ResolveAsync(ctx context.Context, name string, options ...opts.ResolveOpt) <-chan Result
}

// Publisher is an object capable of publishing particular names.
type Publisher interface {
	// Publish establishes a name-value mapping.
	Publish(ctx context.Context, name string, value path.Path, options ...opts.PublishOption) error
}
