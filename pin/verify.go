package pin

import (
	"context"

	"github.com/ipfs/kubo-core/thirdparty/verifcid"

	cid "github.com/ipfs/go-cid"
	format "github.com/ipfs/go-ipld-format"
)

// BadNode is a block below a pin that could not be read or validated.
type BadNode struct {
	Cid cid.Cid
	Err error
}

// PinStatus is the outcome of verifying one recursive pin.
type PinStatus struct {
	Cid      cid.Cid
	Ok       bool
	BadNodes []BadNode
}

// Verify walks every recursive pin and reports the blocks that are missing
// or fail validation. Subtrees shared between pins are checked once.
func Verify(ctx context.Context, p Pinner, ng format.NodeGetter) ([]PinStatus, error) {
	roots, err := p.RecursiveKeys(ctx)
	if err != nil {
		return nil, err
	}

	visited := make(map[cid.Cid]PinStatus)
	var checkPin func(root cid.Cid) PinStatus
	checkPin = func(root cid.Cid) PinStatus {
		if status, ok := visited[root]; ok {
			return status
		}

		if err := verifcid.ValidateCid(root); err != nil {
			status := PinStatus{Ok: false, BadNodes: []BadNode{{Cid: root, Err: err}}}
			visited[root] = status
			return status
		}

		links, err := format.GetLinks(ctx, ng, root)
		if err != nil {
			status := PinStatus{Ok: false, BadNodes: []BadNode{{Cid: root, Err: err}}}
			visited[root] = status
			return status
		}

		status := PinStatus{Ok: true}
		for _, lnk := range links {
			res := checkPin(lnk.Cid)
			if !res.Ok {
				status.Ok = false
				status.BadNodes = append(status.BadNodes, res.BadNodes...)
			}
		}

		visited[root] = status
		return status
	}

	out := make([]PinStatus, 0, len(roots))
	for _, c := range roots {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		status := checkPin(c)
		status.Cid = c
		if !status.Ok {
			log.Warnw("pin verification failed", "cid", c, "bad", len(status.BadNodes))
		}
		out = append(out, status)
	}
	return out, nil
}
