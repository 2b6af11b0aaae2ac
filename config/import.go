package config

const (
	DefaultCidVersion      = 0
	DefaultUnixFSRawLeaves = false
	DefaultUnixFSChunker   = "size-262144"
	DefaultHashFunction    = "sha2-256"
	DefaultUnixFSTrickle   = false

	// DefaultUnixFSFileMaxLinks is the fan-out of intermediate file nodes
	// (importer/helpers.DefaultLinksPerBlock).
	DefaultUnixFSFileMaxLinks = 174

	// DefaultAddParallelism bounds how many directory children are
	// imported concurrently.
	DefaultAddParallelism = 8

	// DefaultBatchMaxNodes controls the maximum number of nodes in a
	// write-batch. The total size of the batch is limited by
	// BatchMaxnodes and BatchMaxSize.
	DefaultBatchMaxNodes = 128
	// DefaultBatchMaxSize controls the maximum size of a single
	// write-batch. The total size of the batch is limited by
	// BatchMaxnodes and BatchMaxSize.
	DefaultBatchMaxSize = 100 << 20 // 100MiB
)

// Import configures the default options for ingesting data. The add,
// block put and dag put operations read it when a call leaves an option
// unset.
type Import struct {
	CidVersion         OptionalInteger
	UnixFSRawLeaves    Flag
	UnixFSChunker      OptionalString
	HashFunction       OptionalString
	UnixFSFileMaxLinks OptionalInteger
	UnixFSTrickle      Flag
	AddParallelism     OptionalInteger
	BatchMaxNodes      OptionalInteger
	BatchMaxSize       OptionalInteger
}
