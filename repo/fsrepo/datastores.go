package fsrepo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ipfs/kubo-core/repo"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"
	ds "github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/mount"
	dssync "github.com/ipfs/go-datastore/sync"
	badgerds "github.com/ipfs/go-ds-badger"
	flatfs "github.com/ipfs/go-ds-flatfs"
	levelds "github.com/ipfs/go-ds-leveldb"
	measure "github.com/ipfs/go-ds-measure"
	pebbleds "github.com/ipfs/go-ds-pebble"
	ldbopts "github.com/syndtr/goleveldb/leveldb/opt"
)

// constructDatastore opens the datastore tree described by params. Relative
// paths are resolved against repoPath.
func constructDatastore(repoPath string, params map[string]interface{}) (repo.Datastore, error) {
	switch params["type"] {
	case "mount":
		mounts, ok := params["mounts"].([]interface{})
		if !ok {
			return nil, fmt.Errorf("'mounts' field is missing or not an array")
		}
		return openMountDatastore(repoPath, mounts)
	case "mem":
		return dssync.MutexWrap(ds.NewMapDatastore()), nil
	case "log":
		child, err := childDatastore(repoPath, params)
		if err != nil {
			return nil, err
		}
		name, ok := params["name"].(string)
		if !ok {
			return nil, fmt.Errorf("'name' field was missing or not a string")
		}
		return ds.NewLogDatastore(child, name), nil
	case "measure":
		child, err := childDatastore(repoPath, params)
		if err != nil {
			return nil, err
		}
		prefix, ok := params["prefix"].(string)
		if !ok {
			return nil, fmt.Errorf("'prefix' field was missing or not a string")
		}
		return measure.New(prefix, child), nil
	case "flatfs":
		return openFlatfsDatastore(repoPath, params)
	case "levelds":
		return openLeveldbDatastore(repoPath, params)
	case "badgerds":
		return openBadgerDatastore(repoPath, params)
	case "pebbleds":
		return openPebbleDatastore(repoPath, params)
	default:
		return nil, fmt.Errorf("unknown datastore type: %v", params["type"])
	}
}

func childDatastore(repoPath string, params map[string]interface{}) (repo.Datastore, error) {
	childField, ok := params["child"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("'child' field was missing or not a map")
	}
	return constructDatastore(repoPath, childField)
}

func openMountDatastore(repoPath string, mountcfg []interface{}) (repo.Datastore, error) {
	var mounts []mount.Mount
	for _, iface := range mountcfg {
		cfg, ok := iface.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("mounts entry is not a map")
		}

		prefix, ok := cfg["mountpoint"].(string)
		if !ok {
			return nil, fmt.Errorf("no 'mountpoint' on mount")
		}

		child, err := constructDatastore(repoPath, cfg)
		if err != nil {
			for _, m := range mounts {
				m.Datastore.Close()
			}
			return nil, err
		}

		mounts = append(mounts, mount.Mount{
			Datastore: child,
			Prefix:    ds.NewKey(prefix),
		})
	}

	return mount.New(mounts), nil
}

func dsPath(repoPath string, params map[string]interface{}) (string, error) {
	p, ok := params["path"].(string)
	if !ok {
		return "", fmt.Errorf("'path' field is missing or not string")
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(repoPath, p)
	}
	return p, nil
}

func openFlatfsDatastore(repoPath string, params map[string]interface{}) (repo.Datastore, error) {
	p, err := dsPath(repoPath, params)
	if err != nil {
		return nil, err
	}

	sshardFun, ok := params["shardFunc"].(string)
	if !ok {
		return nil, fmt.Errorf("'shardFunc' field is missing or not a string")
	}
	shardFun, err := flatfs.ParseShardFunc(sshardFun)
	if err != nil {
		return nil, err
	}

	syncField, ok := params["sync"].(bool)
	if !ok {
		return nil, fmt.Errorf("'sync' field is missing or not boolean")
	}
	return flatfs.CreateOrOpen(p, shardFun, syncField)
}

func openLeveldbDatastore(repoPath string, params map[string]interface{}) (repo.Datastore, error) {
	p, err := dsPath(repoPath, params)
	if err != nil {
		return nil, err
	}

	var c ldbopts.Compression
	switch cm, _ := params["compression"].(string); cm {
	case "none":
		c = ldbopts.NoCompression
	case "snappy":
		c = ldbopts.SnappyCompression
	case "":
		c = ldbopts.DefaultCompression
	default:
		return nil, fmt.Errorf("unrecognized value for compression: %s", cm)
	}
	return levelds.NewDatastore(p, &levelds.Options{
		Compression: c,
	})
}

func openBadgerDatastore(repoPath string, params map[string]interface{}) (repo.Datastore, error) {
	p, err := dsPath(repoPath, params)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(p, defaultDirMode); err != nil {
		return nil, err
	}

	defopts := badgerds.DefaultOptions
	if sw, ok := params["syncWrites"].(bool); ok {
		defopts.SyncWrites = sw
	}
	if tr, ok := params["truncate"].(bool); ok {
		defopts.Truncate = tr
	}
	return badgerds.NewDatastore(p, &defopts)
}

func openPebbleDatastore(repoPath string, params map[string]interface{}) (repo.Datastore, error) {
	p, err := dsPath(repoPath, params)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(p, defaultDirMode); err != nil {
		return nil, err
	}

	var defopts pebble.Options
	defopts = *defopts.EnsureDefaults()
	defopts.MemTableSize = 64 << 20
	defopts.Levels[0].Compression = pebble.NoCompression
	defopts.Levels[0].FilterPolicy = bloom.FilterPolicy(10)

	return pebbleds.NewDatastore(p, pebbleds.WithPebbleOpts(&defopts))
}

// layoutOf keeps the spec keys that fix where and how data is laid out on
// disk. Mounts are sorted by mountpoint.
func layoutOf(params map[string]interface{}) (map[string]interface{}, error) {
	typ, _ := params["type"].(string)
	switch typ {
	case "mount":
		mounts, ok := params["mounts"].([]interface{})
		if !ok {
			return nil, fmt.Errorf("'mounts' field is missing or not an array")
		}
		out := make([]interface{}, 0, len(mounts))
		for _, iface := range mounts {
			cfg, ok := iface.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("mounts entry is not a map")
			}
			child, err := layoutOf(cfg)
			if err != nil {
				return nil, err
			}
			child["mountpoint"] = cfg["mountpoint"]
			out = append(out, child)
		}
		sort.Slice(out, func(i, j int) bool {
			mi, _ := out[i].(map[string]interface{})["mountpoint"].(string)
			mj, _ := out[j].(map[string]interface{})["mountpoint"].(string)
			return mi < mj
		})
		return map[string]interface{}{"type": "mount", "mounts": out}, nil
	case "measure", "log":
		child, ok := params["child"].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("'child' field was missing or not a map")
		}
		return layoutOf(child)
	case "flatfs":
		return map[string]interface{}{"type": typ, "path": params["path"], "shardFunc": params["shardFunc"]}, nil
	case "levelds", "badgerds", "pebbleds":
		return map[string]interface{}{"type": typ, "path": params["path"]}, nil
	case "mem":
		return map[string]interface{}{"type": typ}, nil
	default:
		return nil, fmt.Errorf("unknown datastore type: %v", params["type"])
	}
}
