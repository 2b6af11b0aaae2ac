package namesys

import (
	"context"
	"strings"
	"time"

	opts "github.com/ipfs/kubo-core/core/coreiface/options/namesys"
	path "github.com/ipfs/kubo-core/path"
)

type onceResult struct {
	value path.Path
	ttl   time.Duration
	err   error
}

type resolver interface {
	resolveOnceAsync(ctx context.Context, name string, options opts.ResolveOpts) <-chan onceResult
}

// resolve is a helper for implementing Resolver.Resolve using resolveAsync.
func resolve(ctx context.Context, r resolver, name string, options opts.ResolveOpts) (path.Path, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	err := ErrResolveFailed
	var p path.Path

	for res := range resolveAsync(ctx, r, name, options) {
		p, err = res.Path, res.Err
		if err != nil {
			break
		}
	}

	return p, err
}

func resolveAsync(ctx context.Context, r resolver, name string, options opts.ResolveOpts) <-chan Result {
	resCh := r.resolveOnceAsync(ctx, name, options)
	depth := options.Depth
	outCh := make(chan Result)

	go func() {
		defer close(outCh)
		var subCh <-chan Result
		var cancelSub context.CancelFunc
		defer func() {
			if cancelSub != nil {
				cancelSub()
			}
		}()

		emit := func(res Result) bool {
			select {
			case outCh <- res:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case res, ok := <-resCh:
				if !ok {
					resCh = nil
					break
				}

				if res.err != nil {
					emit(Result{Err: res.err})
					return
				}
				log.Debugf("resolved %s to %s", name, res.value.String())
				if res.value.Namespace() != path.IPNSNamespace {
					if !emit(Result{Path: res.value}) {
						return
					}
					break
				}

				if depth == 1 {
					emit(Result{Path: res.value, Err: ErrResolveRecursion})
					return
				}

				subopts := options
				if subopts.Depth > 1 {
					subopts.Depth--
				}

				if cancelSub != nil {
					// a newer answer supersedes the running lookup
					cancelSub()
				}
				var subCtx context.Context
				subCtx, cancelSub = context.WithCancel(ctx)

				p := strings.TrimPrefix(res.value.String(), "/"+path.IPNSNamespace+"/")
				subCh = resolveAsync(subCtx, r, p, subopts)
			case res, ok := <-subCh:
				if !ok {
					subCh = nil
					break
				}

				if !emit(res) {
					return
				}
			case <-ctx.Done():
				return
			}
			if resCh == nil && subCh == nil {
				return
			}
		}
	}()
	return outCh
}
