package pin

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/ipfs/kubo-core/dagutils"
	mdag "github.com/ipfs/kubo-core/merkledag"
	"github.com/ipfs/kubo-core/thirdparty/dshelp"

	"github.com/fxamacker/cbor/v2"
	cid "github.com/ipfs/go-cid"
	ds "github.com/ipfs/go-datastore"
	dsq "github.com/ipfs/go-datastore/query"
	format "github.com/ipfs/go-ipld-format"
)

var pinsPrefix = ds.NewKey("/pins")

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("pin: cbor encoder: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("pin: cbor decoder: " + err.Error())
	}
}

// record is the persisted form of a pin, one per datastore key.
type record struct {
	Cid   []byte   `cbor:"1,keyasint"`
	Mode  Mode     `cbor:"2,keyasint"`
	Names []string `cbor:"3,keyasint,omitempty"`
}

func (r *record) addName(name string) bool {
	if name == "" {
		return false
	}
	i, found := slices.BinarySearch(r.Names, name)
	if found {
		return false
	}
	r.Names = slices.Insert(r.Names, i, name)
	return true
}

func (r *record) removeName(name string) bool {
	i, found := slices.BinarySearch(r.Names, name)
	if !found {
		return false
	}
	r.Names = slices.Delete(r.Names, i, i+1)
	return true
}

// DSPinner keeps pins as individual CBOR records in a datastore, under
// /pins/<mode>/<key>. Every change is written through immediately.
type DSPinner struct {
	lock   sync.RWMutex
	dstore ds.Datastore
	dserv  format.DAGService
}

var _ Pinner = (*DSPinner)(nil)

// New creates a pinner backed by dstore. dserv is used to fetch the graphs
// of recursive pins.
func New(ctx context.Context, dstore ds.Datastore, dserv format.DAGService) (*DSPinner, error) {
	p := &DSPinner{
		dstore: dstore,
		dserv:  dserv,
	}

	rec, err := p.RecursiveKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot load pins: %w", err)
	}
	log.Debugw("pinner loaded", "recursive", len(rec))
	return p, nil
}

func recordKey(mode Mode, c cid.Cid) ds.Key {
	name, _ := ModeToString(mode)
	return pinsPrefix.ChildString(name).Child(dshelp.CidToDsKey(c))
}

func (p *DSPinner) get(ctx context.Context, mode Mode, c cid.Cid) (*record, error) {
	data, err := p.dstore.Get(ctx, recordKey(mode, c))
	if err != nil {
		if errors.Is(err, ds.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot read pin %s: %w", c, err)
	}

	rec := new(record)
	if err := decMode.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("cannot decode pin %s: %w", c, err)
	}
	return rec, nil
}

func (p *DSPinner) put(ctx context.Context, rec *record) error {
	c, err := cid.Cast(rec.Cid)
	if err != nil {
		return err
	}
	data, err := encMode.Marshal(rec)
	if err != nil {
		return err
	}
	if err := p.dstore.Put(ctx, recordKey(rec.Mode, c), data); err != nil {
		return fmt.Errorf("cannot store pin %s: %w", c, err)
	}
	return nil
}

func (p *DSPinner) remove(ctx context.Context, mode Mode, c cid.Cid) error {
	if err := p.dstore.Delete(ctx, recordKey(mode, c)); err != nil {
		return fmt.Errorf("cannot remove pin %s: %w", c, err)
	}
	return nil
}

// Pin the given node, optionally recursive. A recursive pin first fetches
// the whole graph below node.
func (p *DSPinner) Pin(ctx context.Context, node format.Node, recursive bool, name string) error {
	if err := p.dserv.Add(ctx, node); err != nil {
		return err
	}

	c := node.Cid()
	mode := Direct
	if recursive {
		mode = Recursive

		p.lock.RLock()
		rec, err := p.get(ctx, Recursive, c)
		p.lock.RUnlock()
		if err != nil {
			return err
		}

		// Fetching can take a while, so do it without holding the lock.
		if rec == nil {
			if err := mdag.FetchGraph(ctx, c, p.dserv); err != nil {
				return err
			}
		}
	}

	p.lock.Lock()
	defer p.lock.Unlock()
	return p.addPin(ctx, c, mode, name)
}

// PinWithMode records a pin without fetching anything.
func (p *DSPinner) PinWithMode(ctx context.Context, c cid.Cid, mode Mode, name string) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.addPin(ctx, c, mode, name)
}

func (p *DSPinner) addPin(ctx context.Context, c cid.Cid, mode Mode, name string) error {
	switch mode {
	case Recursive:
		rec, err := p.get(ctx, Recursive, c)
		if err != nil {
			return err
		}
		if rec != nil {
			if rec.addName(name) {
				return p.put(ctx, rec)
			}
			return nil
		}

		rec = &record{Cid: c.Bytes(), Mode: Recursive}

		// a direct pin is upgraded, keeping its owners
		direct, err := p.get(ctx, Direct, c)
		if err != nil {
			return err
		}
		if direct != nil {
			rec.Names = direct.Names
		}
		rec.addName(name)
		if err := p.put(ctx, rec); err != nil {
			return err
		}
		if direct != nil {
			return p.remove(ctx, Direct, c)
		}
		return nil

	case Direct:
		rec, err := p.get(ctx, Recursive, c)
		if err != nil {
			return err
		}
		if rec != nil {
			return fmt.Errorf("%s: %w", c, ErrAlreadyPinnedRecursive)
		}

		direct, err := p.get(ctx, Direct, c)
		if err != nil {
			return err
		}
		if direct == nil {
			direct = &record{Cid: c.Bytes(), Mode: Direct}
			direct.addName(name)
			return p.put(ctx, direct)
		}
		if direct.addName(name) {
			return p.put(ctx, direct)
		}
		return nil

	default:
		modeStr, _ := ModeToString(mode)
		return fmt.Errorf("unrecognized pin mode %q", modeStr)
	}
}

// Unpin a given key. A recursive pin is only removed when recursive is set.
func (p *DSPinner) Unpin(ctx context.Context, c cid.Cid, recursive bool) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	rec, err := p.get(ctx, Recursive, c)
	if err != nil {
		return err
	}
	if rec != nil {
		if !recursive {
			return fmt.Errorf("%s is pinned recursively", c)
		}
		return p.remove(ctx, Recursive, c)
	}

	direct, err := p.get(ctx, Direct, c)
	if err != nil {
		return err
	}
	if direct == nil {
		return ErrNotPinned
	}
	return p.remove(ctx, Direct, c)
}

// UnpinName drops name from the owners of the pin on c, removing the pin
// once no owner is left.
func (p *DSPinner) UnpinName(ctx context.Context, c cid.Cid, name string) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	rec, err := p.lookup(ctx, c)
	if err != nil {
		return err
	}
	if !rec.removeName(name) {
		return fmt.Errorf("%s %q: %w", c, name, ErrNameNotFound)
	}
	if len(rec.Names) == 0 {
		return p.remove(ctx, rec.Mode, c)
	}
	return p.put(ctx, rec)
}

// Names returns the owners of the pin on c.
func (p *DSPinner) Names(ctx context.Context, c cid.Cid) ([]string, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()

	rec, err := p.lookup(ctx, c)
	if err != nil {
		return nil, err
	}
	return rec.Names, nil
}

func (p *DSPinner) lookup(ctx context.Context, c cid.Cid) (*record, error) {
	for _, mode := range []Mode{Recursive, Direct} {
		rec, err := p.get(ctx, mode, c)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
	}
	return nil, ErrNotPinned
}

// IsPinned returns whether or not the given key is pinned
// and an explanation of why its pinned
func (p *DSPinner) IsPinned(ctx context.Context, c cid.Cid) (string, bool, error) {
	return p.IsPinnedWithType(ctx, c, Any)
}

// IsPinnedWithType returns whether or not the given cid is pinned with the
// given pin type, as well as returning the type of pin its pinned with.
func (p *DSPinner) IsPinnedWithType(ctx context.Context, c cid.Cid, mode Mode) (string, bool, error) {
	switch mode {
	case Any, Direct, Indirect, Recursive, Internal:
	default:
		return "", false, fmt.Errorf("invalid Pin Mode '%d', must be one of {%d, %d, %d, %d, %d}",
			mode, Direct, Indirect, Recursive, Internal, Any)
	}

	p.lock.RLock()
	defer p.lock.RUnlock()

	if mode == Recursive || mode == Any {
		rec, err := p.get(ctx, Recursive, c)
		if err != nil {
			return "", false, err
		}
		if rec != nil {
			return linkRecursive, true, nil
		}
		if mode == Recursive {
			return "", false, nil
		}
	}

	if mode == Direct || mode == Any {
		rec, err := p.get(ctx, Direct, c)
		if err != nil {
			return "", false, err
		}
		if rec != nil {
			return linkDirect, true, nil
		}
		if mode == Direct {
			return "", false, nil
		}
	}

	// Pins are plain datastore records, no dag node backs them.
	if mode == Internal {
		return "", false, nil
	}

	roots, err := p.keys(ctx, Recursive)
	if err != nil {
		return "", false, err
	}
	visited := cid.NewSet()
	for _, rc := range roots {
		var found bool
		err := mdag.EnumerateChildren(ctx, mdag.GetLinksWithDAG(p.dserv), rc, func(k cid.Cid) bool {
			if found {
				return false
			}
			if k.Equals(c) {
				found = true
			}
			return visited.Visit(k)
		})
		if err != nil {
			return "", false, err
		}
		if found {
			return rc.String(), true, nil
		}
	}
	return "", false, nil
}

// CheckIfPinned checks if a set of keys are pinned, more efficient than
// calling IsPinned for each key, returns the pinned status of cid(s)
func (p *DSPinner) CheckIfPinned(ctx context.Context, cids ...cid.Cid) ([]Pinned, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()

	pinned := make([]Pinned, 0, len(cids))
	toCheck := cid.NewSet()

	for _, c := range cids {
		rec, err := p.lookup(ctx, c)
		switch {
		case errors.Is(err, ErrNotPinned):
			toCheck.Add(c)
		case err != nil:
			return nil, err
		default:
			pinned = append(pinned, Pinned{Key: c, Mode: rec.Mode})
		}
	}

	if toCheck.Len() == 0 {
		return pinned, nil
	}

	roots, err := p.keys(ctx, Recursive)
	if err != nil {
		return nil, err
	}

	visited := cid.NewSet()
	for _, rk := range roots {
		err := mdag.EnumerateChildren(ctx, mdag.GetLinksWithDAG(p.dserv), rk, func(k cid.Cid) bool {
			if toCheck.Has(k) {
				pinned = append(pinned, Pinned{Key: k, Mode: Indirect, Via: rk})
				toCheck.Remove(k)
			}
			return visited.Visit(k)
		})
		if err != nil {
			return nil, err
		}
		if toCheck.Len() == 0 {
			break
		}
	}

	for _, c := range cids {
		if toCheck.Has(c) {
			pinned = append(pinned, Pinned{Key: c, Mode: NotPinned})
		}
	}

	return pinned, nil
}

// Update updates a recursive pin from one cid to another. This is more
// efficient than simply pinning the new one and unpinning the old one.
// The owners of from carry over to to.
func (p *DSPinner) Update(ctx context.Context, from, to cid.Cid, unpin bool) error {
	if from == to {
		return nil
	}

	p.lock.RLock()
	fromRec, err := p.get(ctx, Recursive, from)
	p.lock.RUnlock()
	if err != nil {
		return err
	}
	if fromRec == nil {
		return errors.New("'from' cid was not recursively pinned already")
	}

	// Fetch the new graph, everything shared with from is already local.
	if err := dagutils.DiffEnumerate(ctx, p.dserv, from, to); err != nil {
		return err
	}

	p.lock.Lock()
	defer p.lock.Unlock()

	toRec, err := p.get(ctx, Recursive, to)
	if err != nil {
		return err
	}
	if toRec == nil {
		toRec = &record{Cid: to.Bytes(), Mode: Recursive}
	}
	for _, n := range fromRec.Names {
		toRec.addName(n)
	}
	if err := p.put(ctx, toRec); err != nil {
		return err
	}

	if direct, err := p.get(ctx, Direct, to); err != nil {
		return err
	} else if direct != nil {
		if err := p.remove(ctx, Direct, to); err != nil {
			return err
		}
	}

	if unpin {
		return p.remove(ctx, Recursive, from)
	}
	return nil
}

// Flush syncs the pin records to disk.
func (p *DSPinner) Flush(ctx context.Context) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if err := p.dstore.Sync(ctx, pinsPrefix); err != nil {
		return fmt.Errorf("cannot sync pin state: %w", err)
	}
	return nil
}

// DirectKeys returns a slice containing the directly pinned keys
func (p *DSPinner) DirectKeys(ctx context.Context) ([]cid.Cid, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.keys(ctx, Direct)
}

// RecursiveKeys returns a slice containing the recursively pinned keys
func (p *DSPinner) RecursiveKeys(ctx context.Context) ([]cid.Cid, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return p.keys(ctx, Recursive)
}

// InternalPins returns nothing: pin state is not stored as dag nodes.
func (p *DSPinner) InternalPins(_ context.Context) ([]cid.Cid, error) {
	return nil, nil
}

func (p *DSPinner) keys(ctx context.Context, mode Mode) ([]cid.Cid, error) {
	name, _ := ModeToString(mode)
	res, err := p.dstore.Query(ctx, dsq.Query{Prefix: pinsPrefix.ChildString(name).String()})
	if err != nil {
		return nil, err
	}
	defer res.Close()

	var out []cid.Cid
	for r := range res.Next() {
		if r.Error != nil {
			return nil, fmt.Errorf("cannot list %s pins: %w", name, r.Error)
		}
		rec := new(record)
		if err := decMode.Unmarshal(r.Value, rec); err != nil {
			return nil, fmt.Errorf("cannot decode pin %s: %w", r.Key, err)
		}
		c, err := cid.Cast(rec.Cid)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
