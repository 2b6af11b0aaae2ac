package namesys

import (
	"time"

	path "github.com/ipfs/kubo-core/path"
)

func (ns *mpns) cacheGet(name string) (path.Path, bool) {
	if ns.cache == nil {
		return "", false
	}

	entry, ok := ns.cache.Get(name)
	if !ok {
		return "", false
	}

	if time.Now().Before(entry.eol) {
		return entry.val, true
	}

	ns.cache.Remove(name)

	return "", false
}

func (ns *mpns) cacheSet(name string, val path.Path, ttl time.Duration) {
	if ns.cache == nil || ttl <= 0 {
		return
	}
	ns.cache.Add(name, cacheEntry{
		val: val,
		eol: time.Now().Add(ttl),
	})
}

func (ns *mpns) cacheInvalidate(name string) {
	if ns.cache == nil {
		return
	}
	ns.cache.Remove(name)
}

type cacheEntry struct {
	val path.Path
	eol time.Time
}
