package helpers

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/ipfs/kubo-core/importer/chunk"
	dag "github.com/ipfs/kubo-core/merkledag"
	ft "github.com/ipfs/kubo-core/unixfs"

	cid "github.com/ipfs/go-cid"
	format "github.com/ipfs/go-ipld-format"
)

// DagBuilderHelper wraps together a bunch of objects needed to
// efficiently create unixfs dag trees
type DagBuilderHelper struct {
	ctx        context.Context
	dserv      format.DAGService
	spl        chunk.Splitter
	recvdErr   error
	rawLeaves  bool
	nextData   []byte // the next item to return.
	maxlinks   int
	cidBuilder cid.Builder

	// attached to the root only
	fileMode    os.FileMode
	fileModTime time.Time
}

// DagBuilderParams wraps configuration options to create a DagBuilderHelper
// from a chunk.Splitter.
type DagBuilderParams struct {
	// Maximum number of links per intermediate node
	Maxlinks int

	// RawLeaves signifies that the importer should use raw ipld nodes as leaves
	// instead of using the unixfs TRaw type
	RawLeaves bool

	// CID Builder to use if set
	CidBuilder cid.Builder

	// DAGService to write blocks to (required)
	Dagserv format.DAGService

	// FileMode is the optional file mode metadata of the root node.
	FileMode os.FileMode

	// FileModTime is the optional last modification time metadata of the
	// root node.
	FileModTime time.Time
}

// New generates a new DagBuilderHelper from the given params and a given
// chunk.Splitter as data source. Cancelling ctx stops chunk production.
func (dbp *DagBuilderParams) New(ctx context.Context, spl chunk.Splitter) (*DagBuilderHelper, error) {
	db := &DagBuilderHelper{
		ctx:         ctx,
		dserv:       dbp.Dagserv,
		spl:         spl,
		rawLeaves:   dbp.RawLeaves,
		cidBuilder:  dbp.CidBuilder,
		maxlinks:    dbp.Maxlinks,
		fileMode:    dbp.FileMode,
		fileModTime: dbp.FileModTime,
	}
	if db.maxlinks < 2 {
		db.maxlinks = DefaultLinksPerBlock
	}
	if db.cidBuilder != nil {
		// fail early on builders that cannot hash
		if _, err := db.cidBuilder.Sum(nil); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// prepareNext consumes the next item from the splitter and puts it
// in the nextData field. it is idempotent-- if nextData is full
// it will do nothing.
func (db *DagBuilderHelper) prepareNext() {
	// if we already have data waiting to be consumed, we're ready
	if db.nextData != nil || db.recvdErr != nil {
		return
	}

	if err := db.ctx.Err(); err != nil {
		db.recvdErr = err
		return
	}

	db.nextData, db.recvdErr = db.spl.NextBytes()
	if db.recvdErr == io.EOF {
		db.recvdErr = nil
	}
}

// Done returns whether or not we're done consuming the incoming data.
func (db *DagBuilderHelper) Done() bool {
	// ensure we have an accurate perspective on data
	// as `done` this may be called before `next`.
	db.prepareNext() // idempotent
	if db.recvdErr != nil {
		return false
	}
	return db.nextData == nil
}

// Next returns the next chunk of data to be inserted into the dag
// if it returns nil, that signifies that the stream is at an end, and
// that the current building operation should finish.
func (db *DagBuilderHelper) Next() ([]byte, error) {
	db.prepareNext() // idempotent
	d := db.nextData
	db.nextData = nil // signal we've consumed it
	if db.recvdErr != nil {
		return nil, db.recvdErr
	}
	return d, nil
}

// GetDagServ returns the dagservice object this Helper is using
func (db *DagBuilderHelper) GetDagServ() format.DAGService {
	return db.dserv
}

// GetCidBuilder returns the internal `cid.CidBuilder` set in the builder.
func (db *DagBuilderHelper) GetCidBuilder() cid.Builder {
	return db.cidBuilder
}

// Context returns the context the builder was created with.
func (db *DagBuilderHelper) Context() context.Context {
	return db.ctx
}

// NewLeafNode creates a leaf node filled with data.  If rawLeaves is
// defined then a raw leaf will be returned.  Otherwise, it will create
// and return `FSNodeOverDag` with `fsNodeType`.
func (db *DagBuilderHelper) NewLeafNode(data []byte, fsNodeType ft.DataType) (format.Node, error) {
	if len(data) > BlockSizeLimit {
		return nil, ErrSizeLimitExceeded
	}

	if db.rawLeaves {
		// Encapsulate the data in a raw node.
		if db.cidBuilder == nil {
			return dag.NewRawNode(data), nil
		}
		rawnode, err := dag.NewRawNodeWPrefix(data, db.cidBuilder)
		if err != nil {
			return nil, err
		}
		return rawnode, nil
	}

	// Encapsulate the data in UnixFS node (instead of a raw node).
	fsNodeOverDag := db.NewFSNodeOverDag(fsNodeType)
	fsNodeOverDag.SetFileData(data)
	node, err := fsNodeOverDag.Commit()
	if err != nil {
		return nil, err
	}

	return node, nil
}

// FillNodeLayer will add datanodes as children to the give node until
// it is full in this layer or no more data.
func (db *DagBuilderHelper) FillNodeLayer(node *FSNodeOverDag) error {
	// while we have room AND we're not done
	for node.NumChildren() < db.maxlinks && !db.Done() {
		child, childFileSize, err := db.NewLeafDataNode(ft.TRaw)
		if err != nil {
			return err
		}

		if err := node.AddChild(child, childFileSize, db); err != nil {
			return err
		}
	}
	_, err := node.Commit()
	return err
}

// NewLeafDataNode builds the `node` with the data obtained from the
// Splitter with the given type (UnixFS File or Raw).
func (db *DagBuilderHelper) NewLeafDataNode(fsNodeType ft.DataType) (node format.Node, dataSize uint64, err error) {
	fileData, err := db.Next()
	if err != nil {
		return nil, 0, err
	}
	dataSize = uint64(len(fileData))

	// Create a new leaf node containing the file chunk data.
	node, err = db.NewLeafNode(fileData, fsNodeType)
	if err != nil {
		return nil, 0, err
	}

	return node, dataSize, nil
}

// Add inserts the given node in the DAGService.
func (db *DagBuilderHelper) Add(node format.Node) error {
	return db.dserv.Add(db.ctx, node)
}

// Maxlinks returns the configured maximum number for links
// for nodes built with this helper.
func (db *DagBuilderHelper) Maxlinks() int {
	return db.maxlinks
}

// HasFileAttributes will return false if Filestore-like attributes are
// not set.
func (db *DagBuilderHelper) HasFileAttributes() bool {
	return db.fileMode != 0 || !db.fileModTime.IsZero()
}

// AttachFileAttributes records mode and mtime on the root of a file DAG.
// Leaves never carry them: a root without links is wrapped in a parent
// File node so its leaf block stays shareable with other files.
func (db *DagBuilderHelper) AttachFileAttributes(root format.Node, fileSize uint64) (format.Node, error) {
	if !db.HasFileAttributes() {
		return root, nil
	}

	var fsn *FSNodeOverDag
	if pn, ok := root.(*dag.ProtoNode); ok {
		var err error
		fsn, err = db.NewFSNFromDag(pn.Copy().(*dag.ProtoNode))
		if err != nil {
			return nil, err
		}
		if len(pn.Links()) == 0 && len(fsn.file.Data()) > 0 {
			fsn = nil
		}
	}
	if fsn == nil {
		fsn = db.NewFSNodeOverDag(ft.TFile)
		if err := fsn.AddChild(root, fileSize, db); err != nil {
			return nil, err
		}
	}

	fsn.file.SetMode(db.fileMode)
	fsn.file.SetModTime(db.fileModTime)
	return fsn.Commit()
}
