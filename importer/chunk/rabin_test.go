package chunk

import (
	"bytes"
	"testing"

	"github.com/ipfs/go-test/random"
	"github.com/stretchr/testify/require"
)

func TestRabinChunking(t *testing.T) {
	data := random.Bytes(1024 * 1024 * 16)

	r := NewRabin(bytes.NewReader(data), 1024*256)
	chunks := collect(t, r)

	require.Greater(t, len(chunks), 1)
	for _, c := range chunks[:len(chunks)-1] {
		require.LessOrEqual(t, len(c), 1024*256*3/2)
		require.GreaterOrEqual(t, len(c), 1024*256/3)
	}
	require.Equal(t, data, bytes.Join(chunks, nil))
}

func TestRabinDeterministic(t *testing.T) {
	data := random.Bytes(1024 * 1024 * 2)

	a := collect(t, NewRabin(bytes.NewReader(data), 1024*64))
	b := collect(t, NewRabin(bytes.NewReader(data), 1024*64))
	require.Equal(t, a, b)
}

func TestRabinContentDefinedBoundaries(t *testing.T) {
	data := random.Bytes(1024 * 1024 * 4)

	base := collect(t, NewRabin(bytes.NewReader(data), 1024*32))
	shifted := collect(t, NewRabin(bytes.NewReader(append([]byte("prefix"), data...)), 1024*32))

	seen := make(map[string]struct{}, len(base))
	for _, c := range base {
		seen[string(c)] = struct{}{}
	}
	var shared int
	for _, c := range shifted {
		if _, ok := seen[string(c)]; ok {
			shared++
		}
	}
	// only the chunks around the inserted prefix should differ
	require.Greater(t, shared, len(base)/2)
}
