package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	coreiface "github.com/ipfs/kubo-core/core/coreiface"
	"github.com/ipfs/kubo-core/path"

	cid "github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"
)

var errAPINotImplemented = errors.New("api not implemented")

const (
	defaultWait  = 5 * time.Second
	pollInterval = 10 * time.Millisecond
)

// Provider builds the nodes a suite run talks to.
type Provider interface {
	// MakeAPISwarm creates n nodes. Nodes of one swarm share their name
	// system, so a name published on one resolves on the others.
	MakeAPISwarm(t *testing.T, ctx context.Context, n int) ([]coreiface.CoreAPI, error)
}

func (tp *TestSuite) makeAPI(t *testing.T, ctx context.Context) coreiface.CoreAPI {
	apis, err := tp.MakeAPISwarm(t, ctx, 1)
	require.NoError(t, err)
	return apis[0]
}

type TestSuite struct {
	Provider
}

// TestApi runs every api test against nodes built by p.
func TestApi(p Provider) func(t *testing.T) {
	tp := &TestSuite{Provider: p}

	return func(t *testing.T) {
		t.Run("Block", tp.TestBlock)
		t.Run("Dag", tp.TestDag)
		t.Run("Name", tp.TestName)
		t.Run("Object", tp.TestObject)
		t.Run("Path", tp.TestPath)
		t.Run("Pin", tp.TestPin)
		t.Run("Unixfs", tp.TestUnixfs)
	}
}

func (tp *TestSuite) hasApi(t *testing.T, tf func(coreiface.CoreAPI) error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)
	if err := tf(api); err != nil {
		t.Fatal(err)
	}
}

// requireCid checks that p is /ipfs/<expected>, whatever base either side
// is written in.
func requireCid(t *testing.T, expected string, p path.Path) {
	t.Helper()
	want, err := cid.Decode(expected)
	require.NoError(t, err)
	got, rest, err := path.SplitAbsPath(p)
	require.NoError(t, err)
	require.Empty(t, rest)
	require.Equal(t, want, got, "got %s", got)
}
