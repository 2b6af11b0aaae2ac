package corerepo

import (
	"context"
	"fmt"

	"github.com/ipfs/kubo-core/core"
	"github.com/ipfs/kubo-core/repo/fsrepo"

	humanize "github.com/dustin/go-humanize"
)

// Stat summarises what a repo holds.
type Stat struct {
	NumObjects uint64
	RepoSize   uint64 // size in bytes
	StorageMax uint64 // size in bytes
	RepoPath   string
	Version    string
}

// NoLimit is reported as StorageMax when the repo has no size limit.
const NoLimit uint64 = ^uint64(0)

// RepoStat counts the blocks in the node's blockstore and reports the
// storage use.
func RepoStat(ctx context.Context, n *core.IpfsNode) (*Stat, error) {
	r := n.Repo

	usage, err := r.GetStorageUsage(ctx)
	if err != nil {
		return nil, err
	}

	count := uint64(0)
	for _, err := range n.Blockstore.AllKeys(ctx) {
		if err != nil {
			return nil, err
		}
		count++
	}

	cfg, err := r.Config()
	if err != nil {
		return nil, err
	}
	storageMax := cfg.Datastore.StorageMax.WithDefault(NoLimit)

	return &Stat{
		NumObjects: count,
		RepoSize:   usage,
		StorageMax: storageMax,
		RepoPath:   r.Path(),
		Version:    fmt.Sprintf("fs-repo@%d", fsrepo.RepoVersion),
	}, nil
}

// HumanSize formats the repo size the way it is shown to users.
func (s *Stat) HumanSize() string {
	if s.StorageMax == NoLimit {
		return humanize.Bytes(s.RepoSize)
	}
	return fmt.Sprintf("%s / %s", humanize.Bytes(s.RepoSize), humanize.Bytes(s.StorageMax))
}
