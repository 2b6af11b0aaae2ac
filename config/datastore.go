package config

import (
	"time"
)

const (
	// DefaultDataStoreDirectory is the directory to store all the local IPFS data.
	DefaultDataStoreDirectory = "datastore"

	// DefaultBlocksDirectory is where flatfs keeps block files.
	DefaultBlocksDirectory = "blocks"

	// DefaultStorageMax is the repo size above which periodic GC starts
	// considering a collection.
	DefaultStorageMax = "10GB"

	// DefaultStorageGCWatermark is the percentage of StorageMax that
	// triggers a collection.
	DefaultStorageGCWatermark = 90

	// DefaultGCPeriod is how often periodic GC checks the repo size.
	DefaultGCPeriod = time.Hour

	// DefaultBloomFilterSize is the bloom filter size in bytes; 0 disables
	// the filter.
	DefaultBloomFilterSize = 0

	// DefaultBlockKeyCacheSize is the number of block keys kept in the
	// two-queue existence cache.
	DefaultBlockKeyCacheSize = 64 << 10

	// DefaultHashOnRead rehashes every block read from disk when enabled.
	DefaultHashOnRead = false
)

// Datastore tracks the configuration of the datastore.
type Datastore struct {
	StorageMax         *OptionalBytes    `json:",omitempty"`
	StorageGCWatermark *OptionalInteger  `json:",omitempty"` // in percentage to multiply on StorageMax
	GCPeriod           *OptionalDuration `json:",omitempty"`

	// Spec describes the datastore tree; see repo/fsrepo for the
	// supported node types.
	Spec map[string]interface{}

	HashOnRead        Flag
	BloomFilterSize   OptionalInteger
	BlockKeyCacheSize OptionalInteger
}

// DefaultDatastoreConfig returns the datastore configuration written by Init.
func DefaultDatastoreConfig() Datastore {
	return Datastore{
		StorageMax:         NewOptionalBytes(DefaultStorageMax),
		StorageGCWatermark: NewOptionalInteger(DefaultStorageGCWatermark),
		GCPeriod:           NewOptionalDuration(DefaultGCPeriod),
		Spec:               flatfsSpec(),
	}
}

func flatfsSpec() map[string]interface{} {
	return map[string]interface{}{
		"type": "mount",
		"mounts": []interface{}{
			map[string]interface{}{
				"mountpoint": "/blocks",
				"type":       "measure",
				"prefix":     "flatfs.datastore",
				"child": map[string]interface{}{
					"type":      "flatfs",
					"path":      DefaultBlocksDirectory,
					"sync":      false,
					"shardFunc": "/repo/flatfs/shard/v1/next-to-last/2",
				},
			},
			map[string]interface{}{
				"mountpoint": "/",
				"type":       "measure",
				"prefix":     "leveldb.datastore",
				"child": map[string]interface{}{
					"type":        "levelds",
					"path":        DefaultDataStoreDirectory,
					"compression": "none",
				},
			},
		},
	}
}

func badgerSpec() map[string]interface{} {
	return map[string]interface{}{
		"type":   "measure",
		"prefix": "badger.datastore",
		"child": map[string]interface{}{
			"type":       "badgerds",
			"path":       "badgerds",
			"syncWrites": false,
			"truncate":   true,
		},
	}
}

func pebbleSpec() map[string]interface{} {
	return map[string]interface{}{
		"type":   "measure",
		"prefix": "pebble.datastore",
		"child": map[string]interface{}{
			"type": "pebbleds",
			"path": "pebbleds",
		},
	}
}

func levelSpec() map[string]interface{} {
	return map[string]interface{}{
		"type":   "measure",
		"prefix": "leveldb.datastore",
		"child": map[string]interface{}{
			"type":        "levelds",
			"path":        DefaultDataStoreDirectory,
			"compression": "none",
		},
	}
}

func memSpec() map[string]interface{} {
	return map[string]interface{}{
		"type": "mem",
	}
}
