package path

import (
	"context"
	"errors"
	"fmt"

	dag "github.com/ipfs/kubo-core/merkledag"
	uio "github.com/ipfs/kubo-core/unixfs/io"

	cid "github.com/ipfs/go-cid"
	format "github.com/ipfs/go-ipld-format"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("path")

var (
	// ErrPathNotFound is returned when a segment of a path names no link.
	ErrPathNotFound = errors.New("path not found")

	// ErrNotADirectory is returned when a non-terminal segment resolves to
	// something that cannot hold named children.
	ErrNotADirectory = errors.New("not a directory")
)

// ErrNoLink is returned when a link is not found in a path
type ErrNoLink struct {
	Name string
	Node cid.Cid
}

func (e *ErrNoLink) Error() string {
	return fmt.Sprintf("no link named %q under %s", e.Name, e.Node)
}

func (e *ErrNoLink) Unwrap() error {
	return ErrPathNotFound
}

// ResolveOnceFunc resolves a single hop between nodes.
type ResolveOnceFunc func(ctx context.Context, ds format.NodeGetter, nd format.Node, names []string) (*format.Link, []string, error)

// Resolver provides path resolution to IPFS
// It has a pointer to a NodeGetter, which is uses to resolve nodes.
type Resolver struct {
	DAG format.NodeGetter

	ResolveOnce ResolveOnceFunc
}

// NewBasicResolver constructs a new basic resolver that walks unixfs
// directories.
func NewBasicResolver(ds format.NodeGetter) *Resolver {
	return &Resolver{
		DAG:         ds,
		ResolveOnce: uio.ResolveUnixfsOnce,
	}
}

// ResolveToLastNode walks the given path and returns the cid of the last
// node referenced by the path.
func (r *Resolver) ResolveToLastNode(ctx context.Context, fpath Path) (cid.Cid, error) {
	nd, err := r.ResolvePath(ctx, fpath)
	if err != nil {
		return cid.Undef, err
	}
	return nd.Cid(), nil
}

// ResolvePath fetches the node for given path. It returns the last item
// returned by ResolvePathComponents.
func (r *Resolver) ResolvePath(ctx context.Context, fpath Path) (format.Node, error) {
	nodes, err := r.ResolvePathComponents(ctx, fpath)
	if err != nil {
		return nil, err
	}
	return nodes[len(nodes)-1], nil
}

// ResolvePathComponents fetches the nodes for each segment of the given path.
// It uses the first path component as a hash (key) of the first node, then
// resolves all other components walking the links, with ResolveLinks.
func (r *Resolver) ResolvePathComponents(ctx context.Context, fpath Path) ([]format.Node, error) {
	if err := fpath.IsValid(); err != nil {
		return nil, err
	}
	if fpath.Namespace() == IPNSNamespace {
		return nil, fmt.Errorf("%w: %s must be resolved by a name system first", ErrBadPath, fpath)
	}

	h, parts, err := SplitAbsPath(fpath)
	if err != nil {
		return nil, err
	}

	log.Debugw("resolve dag get", "cid", h)
	nd, err := r.DAG.Get(ctx, h)
	if err != nil {
		return nil, err
	}

	return r.ResolveLinks(ctx, nd, parts)
}

// ResolveLinks iteratively resolves names by walking the link hierarchy.
// Every node is fetched from the NodeGetter, resolving the next name.
// Returns the list of nodes forming the path, starting with ndd. This list is
// guaranteed never to be empty.
//
// ResolveLinks(nd, []string{"foo", "bar", "baz"})
// would retrieve "baz" in ("bar" in ("foo" in nd.Links).Links).Links
func (r *Resolver) ResolveLinks(ctx context.Context, ndd format.Node, names []string) ([]format.Node, error) {
	resolveOnce := r.ResolveOnce
	if resolveOnce == nil {
		resolveOnce = uio.ResolveUnixfsOnce
	}

	result := make([]format.Node, 0, len(names)+1)
	result = append(result, ndd)
	nd := ndd

	for len(names) > 0 {
		name := names[0]
		if name == "" {
			names = names[1:]
			continue
		}

		lnk, rest, err := resolveOnce(ctx, r.DAG, nd, names)
		switch {
		case errors.Is(err, uio.ErrNotADir):
			return result, fmt.Errorf("%w: %s is not a directory, cannot resolve %q", ErrNotADirectory, nd.Cid(), name)
		case errors.Is(err, dag.ErrLinkNotFound):
			return result, &ErrNoLink{Name: name, Node: nd.Cid()}
		case err != nil:
			return result, err
		}

		nextnode, err := lnk.GetNode(ctx, r.DAG)
		if err != nil {
			return result, err
		}

		nd = nextnode
		result = append(result, nextnode)
		names = rest
	}
	return result, nil
}
