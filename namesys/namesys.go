package namesys

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	opts "github.com/ipfs/kubo-core/core/coreiface/options/namesys"
	path "github.com/ipfs/kubo-core/path"
	dshelp "github.com/ipfs/kubo-core/thirdparty/dshelp"
	"github.com/ipfs/kubo-core/tracing"

	lru "github.com/hashicorp/golang-lru/v2"
	ds "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	logging "github.com/ipfs/go-log/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var log = logging.Logger("namesys")

// DefaultResolverCacheSize is the number of resolved names NewMemory keeps.
const DefaultResolverCacheSize = 128

// recordPrefix is where name records live in the datastore.
var recordPrefix = ds.NewKey("/ipns")

// mpns implements NameSystem over a local datastore. Published records are
// stored under /ipns/<base32 name>; resolved answers are cached for the
// record TTL.
type mpns struct {
	ds    ds.Datastore
	cache *lru.Cache[string, cacheEntry]

	// serializes publishes so sequence numbers stay monotonic
	pubLk sync.Mutex
}

var _ NameSystem = (*mpns)(nil)

// NewNameSystem constructs a name system storing records in d. A cachesize
// of zero disables the resolve cache.
func NewNameSystem(d ds.Datastore, cachesize int) (NameSystem, error) {
	ns := &mpns{ds: d}
	if cachesize > 0 {
		cache, err := lru.New[string, cacheEntry](cachesize)
		if err != nil {
			return nil, err
		}
		ns.cache = cache
	}
	return ns, nil
}

// NewMemory returns a name system kept entirely in memory.
func NewMemory() NameSystem {
	ns, err := NewNameSystem(dssync.MutexWrap(ds.NewMapDatastore()), DefaultResolverCacheSize)
	if err != nil {
		panic(err)
	}
	return ns
}

// Resolve implements Resolver.
func (ns *mpns) Resolve(ctx context.Context, name string, options ...opts.ResolveOpt) (path.Path, error) {
	ctx, span := tracing.Span(ctx, "NameSystem", "Resolve", trace.WithAttributes(attribute.String("Name", name)))
	defer span.End()

	if p, ok := directPath(name); ok {
		return path.ParsePath(p)
	}

	return resolve(ctx, ns, name, opts.ProcessOpts(options))
}

// ResolveAsync implements Resolver.
func (ns *mpns) ResolveAsync(ctx context.Context, name string, options ...opts.ResolveOpt) <-chan Result {
	ctx, span := tracing.Span(ctx, "NameSystem", "ResolveAsync", trace.WithAttributes(attribute.String("Name", name)))
	defer span.End()

	if p, ok := directPath(name); ok {
		res := make(chan Result, 1)
		pth, err := path.ParsePath(p)
		res <- Result{Path: pth, Err: err}
		close(res)
		return res
	}

	return resolveAsync(ctx, ns, name, opts.ProcessOpts(options))
}

// directPath reports whether name already designates content: an /ipfs/
// path or a bare cid.
func directPath(name string) (string, bool) {
	if strings.HasPrefix(name, "/"+path.IPFSNamespace+"/") {
		return name, true
	}
	if !strings.HasPrefix(name, "/") {
		head, _, _ := strings.Cut(name, "/")
		if _, err := path.ParseCidToPath(head); err == nil {
			return name, true
		}
	}
	return "", false
}

// resolveOnceAsync implements resolver.
func (ns *mpns) resolveOnceAsync(ctx context.Context, name string, options opts.ResolveOpts) <-chan onceResult {
	out := make(chan onceResult, 1)
	defer close(out)

	if !strings.HasPrefix(name, "/"+path.IPNSNamespace+"/") {
		name = "/" + path.IPNSNamespace + "/" + name
	}
	segments := strings.SplitN(name, "/", 4)
	if len(segments) < 3 || segments[0] != "" || segments[2] == "" {
		log.Warnf("invalid name syntax for %s", name)
		out <- onceResult{err: ErrResolveFailed}
		return out
	}
	key := segments[2]

	p, ok := path.Path(""), false
	if options.Cache {
		p, ok = ns.cacheGet(key)
	}

	var ttl time.Duration
	if !ok {
		rec, err := ns.getRecord(ctx, key)
		if err != nil {
			out <- onceResult{err: err}
			return out
		}
		if p, err = path.ParsePath(rec.Value); err != nil {
			out <- onceResult{err: fmt.Errorf("%w: %w", ErrResolveFailed, err)}
			return out
		}

		ttl = rec.ttl()
		if remaining := time.Until(rec.eol()); remaining < ttl {
			ttl = remaining
		}
		ns.cacheSet(key, p, ttl)
	}

	if len(segments) > 3 {
		var err error
		p, err = path.Join(p, segments[3])
		if err != nil {
			out <- onceResult{err: err}
			return out
		}
	}

	out <- onceResult{value: p, ttl: ttl}
	return out
}

func (ns *mpns) getRecord(ctx context.Context, name string) (*record, error) {
	val, err := ns.ds.Get(ctx, recordKey(name))
	if err != nil {
		if errors.Is(err, ds.ErrNotFound) {
			log.Debugf("no record for %s", name)
			return nil, ErrResolveFailed
		}
		return nil, err
	}

	rec, err := decodeRecord(val)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupt record for %s: %w", ErrResolveFailed, name, err)
	}
	if time.Now().After(rec.eol()) {
		return nil, fmt.Errorf("%w: %w", ErrResolveFailed, ErrExpiredRecord)
	}
	return rec, nil
}

// Publish implements Publisher.
func (ns *mpns) Publish(ctx context.Context, name string, value path.Path, options ...opts.PublishOption) error {
	ctx, span := tracing.Span(ctx, "NameSystem", "Publish", trace.WithAttributes(attribute.String("Name", name), attribute.String("Value", value.String())))
	defer span.End()

	if name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if err := value.IsValid(); err != nil {
		return err
	}
	options2 := opts.ProcessPublishOptions(options)

	ns.pubLk.Lock()
	defer ns.pubLk.Unlock()

	var seq uint64
	prev, err := ns.ds.Get(ctx, recordKey(name))
	switch {
	case err == nil:
		old, err := decodeRecord(prev)
		if err != nil {
			log.Warnf("replacing corrupt record for %s: %s", name, err)
			break
		}
		seq = old.Seq + 1
	case errors.Is(err, ds.ErrNotFound):
	default:
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	data, err := encodeRecord(&record{
		Value: value.String(),
		Seq:   seq,
		EOL:   options2.EOL.UnixNano(),
		TTL:   int64(options2.TTL),
	})
	if err != nil {
		return err
	}
	if err := ns.ds.Put(ctx, recordKey(name), data); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	if err := ns.ds.Sync(ctx, recordKey(name)); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	ttl := options2.TTL
	if remaining := time.Until(options2.EOL); remaining < ttl {
		ttl = remaining
	}
	ns.cacheInvalidate(name)
	ns.cacheSet(name, value, ttl)
	log.Debugw("published", "name", name, "value", value, "seq", seq)
	return nil
}

func recordKey(name string) ds.Key {
	return recordPrefix.Child(dshelp.NewKeyFromBinary([]byte(name)))
}
