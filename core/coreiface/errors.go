package iface

import (
	"errors"

	"github.com/ipfs/kubo-core/namesys"
	uio "github.com/ipfs/kubo-core/unixfs/io"
)

var (
	ErrIsDir   = uio.ErrIsDir
	ErrNotFile = errors.New("not a file")
	ErrOffline = errors.New("node is offline, cannot fetch missing blocks")

	// ErrCancelled is returned by reads stopped by their context.
	ErrCancelled = uio.ErrCancelled

	ErrResolveFailed = namesys.ErrResolveFailed
)
