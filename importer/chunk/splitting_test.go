package chunk

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/ipfs/go-test/random"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, s Splitter) [][]byte {
	t.Helper()
	var out [][]byte
	for b, err := range Chunks(context.Background(), s) {
		require.NoError(t, err)
		out = append(out, b)
	}
	return out
}

func TestSizeSplitterHelloWorld(t *testing.T) {
	chunks := collect(t, NewSizeSplitter(bytes.NewReader([]byte("hello world")), 5))
	require.Equal(t, [][]byte{[]byte("hello"), []byte(" worl"), []byte("d")}, chunks)
}

func TestSizeSplitterIsSize(t *testing.T) {
	const max = 1000
	data := random.Bytes(max * 10)
	r := bytes.NewReader(data)

	chunks := collect(t, NewSizeSplitter(r, max))
	require.Len(t, chunks, 10)
	for _, c := range chunks {
		require.Len(t, c, max)
	}
	require.Equal(t, data, bytes.Join(chunks, nil))
}

func TestSizeSplitterFillsChunks(t *testing.T) {
	const max = 10000000
	data := random.Bytes(max * 3 / 2)
	pr, pw := io.Pipe()
	go func() {
		// write in small pieces so the splitter has to fill chunks itself
		for i := 0; i < len(data); i += 1024 {
			end := min(i+1024, len(data))
			if _, err := pw.Write(data[i:end]); err != nil {
				pw.CloseWithError(err)
				return
			}
		}
		pw.Close()
	}()

	chunks := collect(t, NewSizeSplitter(pr, max))
	require.Len(t, chunks, 2)
	require.Len(t, chunks[0], max)
	require.Equal(t, data, bytes.Join(chunks, nil))
}

func TestEmptyInputYieldsOneChunk(t *testing.T) {
	for _, s := range []Splitter{
		NewSizeSplitter(bytes.NewReader(nil), 5),
		NewRabin(bytes.NewReader(nil), 256*1024),
	} {
		chunks := collect(t, s)
		require.Len(t, chunks, 1)
		require.Empty(t, chunks[0])
	}
}

func TestChunksCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewSizeSplitter(bytes.NewReader(random.Bytes(100)), 10)

	var got int
	var lastErr error
	for b, err := range Chunks(ctx, s) {
		if err != nil {
			lastErr = err
			break
		}
		got += len(b)
		cancel()
	}
	require.Equal(t, 10, got)
	require.ErrorIs(t, lastErr, context.Canceled)
}

type infiniteReader struct{}

func (infiniteReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(i)
	}
	return len(p), nil
}

func TestChunksInfiniteInput(t *testing.T) {
	var n int
	for b, err := range Chunks(context.Background(), NewSizeSplitter(infiniteReader{}, 4096)) {
		require.NoError(t, err)
		require.Len(t, b, 4096)
		n++
		if n == 16 {
			break
		}
	}
	require.Equal(t, 16, n)
}
