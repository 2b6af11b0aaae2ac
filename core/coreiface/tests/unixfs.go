package tests

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"
	"time"

	coreiface "github.com/ipfs/kubo-core/core/coreiface"
	"github.com/ipfs/kubo-core/core/coreiface/options"
	"github.com/ipfs/kubo-core/path"

	"github.com/ipfs/boxo/files"
	"github.com/stretchr/testify/require"
)

func (tp *TestSuite) TestUnixfs(t *testing.T) {
	tp.hasApi(t, func(api coreiface.CoreAPI) error {
		if api.Unixfs() == nil {
			return errAPINotImplemented
		}
		return nil
	})

	t.Run("TestAdd", tp.TestAdd)
	t.Run("TestAddPinned", tp.TestAddPinned)
	t.Run("TestAddHashOnly", tp.TestAddHashOnly)
	t.Run("TestAddEvents", tp.TestAddEvents)
	t.Run("TestAddProgress", tp.TestAddProgress)
	t.Run("TestAddTrickle", tp.TestAddTrickle)
	t.Run("TestAddMetadata", tp.TestAddMetadata)
	t.Run("TestGetEmptyFile", tp.TestGetEmptyFile)
	t.Run("TestGetDir", tp.TestGetDir)
	t.Run("TestGetSymlink", tp.TestGetSymlink)
	t.Run("TestCat", tp.TestCat)
	t.Run("TestCatDir", tp.TestCatDir)
	t.Run("TestLs", tp.TestLs)
	t.Run("TestLsIter", tp.TestLsIter)
	t.Run("TestLsEmptyDir", tp.TestLsEmptyDir)
	t.Run("TestLsSymlink", tp.TestLsSymlink)
	t.Run("TestLsCancelled", tp.TestLsCancelled)
	t.Run("TestArchive", tp.TestArchive)
}

// `echo -n 'hello, world!' | ipfs add`
var hello = "/ipfs/QmQy2Dw4Wk7rdJKjThjYXzfFJNaRKRHhHP5gHHXroJMYxk"
var helloStr = "hello, world!"

// `echo -n | ipfs add`
var emptyFile = "/ipfs/QmbFMke1KXqnYyBBWxB74N4c5SBnJMVAiMNRcGu6x1AwQH"

func strFile(data string) func() files.Node {
	return func() files.Node {
		return files.NewBytesFile([]byte(data))
	}
}

func twoLevelDir() func() files.Node {
	return func() files.Node {
		return files.NewMapDirectory(map[string]files.Node{
			"abc": files.NewMapDirectory(map[string]files.Node{
				"def": files.NewBytesFile([]byte("world")),
			}),

			"bar": files.NewBytesFile([]byte("hello2")),
			"foo": files.NewBytesFile([]byte("hello1")),
		})
	}
}

func flatDir() files.Node {
	return files.NewMapDirectory(map[string]files.Node{
		"bar": files.NewBytesFile([]byte("hello2")),
		"foo": files.NewBytesFile([]byte("hello1")),
	})
}

func wrapped(name string) func(f files.Node) files.Node {
	return func(f files.Node) files.Node {
		return files.NewMapDirectory(map[string]files.Node{
			name: f,
		})
	}
}

// requireSameFiles walks both trees and compares names and contents.
func requireSameFiles(t *testing.T, expect, actual files.Node) {
	t.Helper()

	switch e := expect.(type) {
	case *files.Symlink:
		a, ok := actual.(*files.Symlink)
		require.True(t, ok, "expected a symlink, got %T", actual)
		require.Equal(t, e.Target, a.Target)
	case files.File:
		a, ok := actual.(files.File)
		require.True(t, ok, "expected a file, got %T", actual)
		eb, err := io.ReadAll(e)
		require.NoError(t, err)
		ab, err := io.ReadAll(a)
		require.NoError(t, err)
		require.Equal(t, string(eb), string(ab))
	case files.Directory:
		a, ok := actual.(files.Directory)
		require.True(t, ok, "expected a directory, got %T", actual)
		ei, ai := e.Entries(), a.Entries()
		for ei.Next() {
			require.True(t, ai.Next(), "missing entry %q", ei.Name())
			require.Equal(t, ei.Name(), ai.Name())
			requireSameFiles(t, ei.Node(), ai.Node())
		}
		require.NoError(t, ei.Err())
		require.False(t, ai.Next(), "unexpected entry %q", ai.Name())
		require.NoError(t, ai.Err())
	default:
		t.Fatalf("unexpected node type %T", expect)
	}
}

// addWithEvents runs Add with an event sink and returns what it reported.
func addWithEvents(ctx context.Context, api coreiface.CoreAPI, nd files.Node, opts ...options.UnixfsAddOption) (path.Path, []*coreiface.AddEvent, error) {
	out := make(chan interface{})
	done := make(chan []*coreiface.AddEvent)
	go func() {
		var evs []*coreiface.AddEvent
		for o := range out {
			evs = append(evs, o.(*coreiface.AddEvent))
		}
		done <- evs
	}()

	p, err := api.Unixfs().Add(ctx, nd, append(opts, options.Unixfs.Events(out))...)
	close(out)
	return p, <-done, err
}

func (tp *TestSuite) TestAdd(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	cases := []struct {
		name   string
		data   func() files.Node
		expect func(files.Node) files.Node

		apiOpts []options.ApiOption

		path string
		err  error

		opts []options.UnixfsAddOption
	}{
		// Simple cases
		{
			name: "simpleAdd",
			data: strFile(helloStr),
			path: hello,
		},
		{
			name: "addEmpty",
			data: strFile(""),
			path: emptyFile,
		},
		// CIDv1 version / rawLeaves
		{
			name: "addCidV1",
			data: strFile(helloStr),
			path: "/ipfs/zb2rhdhmJjJZs9qkhQCpCQ7VREFkqWw3h1r8utjVvQugwHPFd",
			opts: []options.UnixfsAddOption{options.Unixfs.CidVersion(1)},
		},
		{
			name: "addCidV1NoLeaves",
			data: strFile(helloStr),
			path: "/ipfs/zdj7WY4GbN8NDbTW1dfCShAQNVovams2xhq9hVCx5vXcjvT8g",
			opts: []options.UnixfsAddOption{options.Unixfs.CidVersion(1), options.Unixfs.RawLeaves(false)},
		},
		{
			name: "addCidV0Sha512",
			data: strFile(helloStr),
			err:  errors.New("cid version 0"),
			opts: []options.UnixfsAddOption{options.Unixfs.CidVersion(0), options.Unixfs.Hash("sha2-512")},
		},
		{
			name: "addUnknownHash",
			data: strFile(helloStr),
			err:  errors.New("hash"),
			opts: []options.UnixfsAddOption{options.Unixfs.Hash("no-such-hash")},
		},
		// Chunker / Layout
		{
			name: "addChunks",
			data: strFile(strings.Repeat("aoeuidhtns", 200)),
			path: "/ipfs/QmRo11d4QJrST47aaiGVJYwPhoNA4ihRpJ5WaxBWjWDwbX",
			opts: []options.UnixfsAddOption{options.Unixfs.Chunker("size-4")},
		},
		{
			name: "addBadChunker",
			data: strFile(helloStr),
			err:  errors.New("chunker"),
			opts: []options.UnixfsAddOption{options.Unixfs.Chunker("nope-4")},
		},
		// Local
		{
			name:    "addLocal",
			data:    strFile(helloStr),
			path:    hello,
			apiOpts: []options.ApiOption{options.Api.Offline(true)},
		},
		{
			name: "hashOnly",
			data: strFile(helloStr),
			path: hello,
			opts: []options.UnixfsAddOption{options.Unixfs.HashOnly(true)},
		},
		// multi file
		{
			name: "simpleDir",
			data: flatDir,
			path: "/ipfs/QmRKGpFfR32FVXdvJiHfo4WJ5TDYBsM1P9raAp1p6APWSp",
		},
		{
			name: "twoLevelDir",
			data: twoLevelDir(),
			path: "/ipfs/QmVG2ZYCkV1S4TK8URA3a4RupBF17A8yAr4FqsRDXVJASr",
		},
		// wrapped
		{
			name:   "addWrapped",
			path:   "/ipfs/QmVE9rNpj5doj7XHzp5zMUxD7BJgXEqx4pe3xZ3JBReWHE",
			data:   strFile(helloStr),
			expect: wrapped("foo"),
			opts:   []options.UnixfsAddOption{options.Unixfs.Wrap(true), options.Unixfs.StdinName("foo")},
		},
		{
			name: "stdinWrapped",
			path: "/ipfs/QmU3r81oZycjHS9oaSHw37ootMFuFUw1DvMLKXPsezdtqU",
			data: strFile(helloStr),
			expect: func(files.Node) files.Node {
				return files.NewMapDirectory(map[string]files.Node{
					"QmQy2Dw4Wk7rdJKjThjYXzfFJNaRKRHhHP5gHHXroJMYxk": files.NewBytesFile([]byte(helloStr)),
				})
			},
			opts: []options.UnixfsAddOption{options.Unixfs.Wrap(true)},
		},
		{
			name:   "stdinNamed",
			path:   "/ipfs/QmQ6cGBmb3ZbdrQW1MRm1RJnYnaxCqfssz7CrTa9NEhQyS",
			data:   strFile(helloStr),
			expect: wrapped("test"),
			opts:   []options.UnixfsAddOption{options.Unixfs.Wrap(true), options.Unixfs.StdinName("test")},
		},
		{
			name:   "twoLevelDirWrapped",
			data:   twoLevelDir(),
			expect: wrapped("t"),
			path:   "/ipfs/QmPwsL3T5sWhDmmAWZHAzyjKtMVDS9a11aHNRqb3xoVnmg",
			opts:   []options.UnixfsAddOption{options.Unixfs.Wrap(true), options.Unixfs.StdinName("t")},
		},
		// hidden
		{
			name: "hiddenFiles",
			data: func() files.Node {
				return files.NewMapDirectory(map[string]files.Node{
					".bar": files.NewBytesFile([]byte("hello2")),
					"bar":  files.NewBytesFile([]byte("hello2")),
					"foo":  files.NewBytesFile([]byte("hello1")),
				})
			},
			path: "/ipfs/QmehGvpf2hY196MzDFmjL8Wy27S4jbgGDUAhBJyvXAwr3g",
			opts: []options.UnixfsAddOption{options.Unixfs.Hidden(true)},
		},
		{
			name: "hiddenFilesNotAdded",
			data: func() files.Node {
				return files.NewMapDirectory(map[string]files.Node{
					".bar": files.NewBytesFile([]byte("hello2")),
					"bar":  files.NewBytesFile([]byte("hello2")),
					"foo":  files.NewBytesFile([]byte("hello1")),
				})
			},
			expect: func(files.Node) files.Node {
				return flatDir()
			},
			path: "/ipfs/QmRKGpFfR32FVXdvJiHfo4WJ5TDYBsM1P9raAp1p6APWSp",
			opts: []options.UnixfsAddOption{options.Unixfs.Hidden(false)},
		},
		// options that cannot be combined
		{
			name: "pinHashOnly",
			data: strFile(helloStr),
			err:  errors.New("cannot pin"),
			opts: []options.UnixfsAddOption{options.Unixfs.Pin(true), options.Unixfs.HashOnly(true)},
		},
		{
			name: "maxLinksTooLow",
			data: strFile(helloStr),
			err:  errors.New("max file links"),
			opts: []options.UnixfsAddOption{options.Unixfs.MaxFileLinks(1)},
		},
	}

	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			api, err := api.WithOptions(testCase.apiOpts...)
			require.NoError(t, err)

			p, err := api.Unixfs().Add(ctx, testCase.data(), testCase.opts...)
			if testCase.err != nil {
				require.ErrorContains(t, err, testCase.err.Error())
				return
			}
			require.NoError(t, err)
			requireCid(t, strings.TrimPrefix(testCase.path, "/ipfs/"), p)

			if testCase.name == "hashOnly" {
				return
			}

			expect := testCase.data()
			if testCase.expect != nil {
				expect = testCase.expect(expect)
			}

			got, err := api.Unixfs().Get(ctx, p)
			require.NoError(t, err)
			requireSameFiles(t, expect, got)
		})
	}
}

func (tp *TestSuite) TestAddPinned(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	p, err := api.Unixfs().Add(ctx, strFile(helloStr)(), options.Unixfs.Pin(true), options.Unixfs.PinName("greeting"))
	require.NoError(t, err)

	pins, err := accPins(ctx, api, options.Pin.Ls.Detailed(true))
	require.NoError(t, err)
	require.Len(t, pins, 1)
	require.Equal(t, "recursive", pins[0].Type())
	require.Equal(t, p, pins[0].Path())
	require.Equal(t, []string{"greeting"}, pins[0].Names())

	// without Pin the content is stored but left unpinned
	p2, err := api.Unixfs().Add(ctx, strFile("unpinned")())
	require.NoError(t, err)
	_, pinned, err := api.Pin().IsPinned(ctx, p2)
	require.NoError(t, err)
	require.False(t, pinned)
}

func (tp *TestSuite) TestAddHashOnly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	p, err := api.Unixfs().Add(ctx, strFile(helloStr)(), options.Unixfs.HashOnly(true))
	require.NoError(t, err)
	require.Equal(t, hello, p.String())

	offline, err := api.WithOptions(options.Api.Offline(true))
	require.NoError(t, err)
	_, err = offline.Block().Get(ctx, p)
	require.Error(t, err)

	pins, err := accPins(ctx, api)
	require.NoError(t, err)
	require.Empty(t, pins)
}

func (tp *TestSuite) TestAddEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	t.Run("file", func(t *testing.T) {
		p, evs, err := addWithEvents(ctx, api, strFile(helloStr)(), options.Unixfs.CidVersion(1))
		require.NoError(t, err)
		require.Len(t, evs, 1)
		require.Equal(t, p, evs[0].Path)
		require.Equal(t, strings.TrimPrefix(p.String(), "/ipfs/"), evs[0].Name)
		require.Equal(t, "13", evs[0].Size)
	})

	t.Run("dir", func(t *testing.T) {
		p, evs, err := addWithEvents(ctx, api, twoLevelDir()())
		require.NoError(t, err)

		type ev struct{ name, cid, size string }
		want := []ev{
			{"abc/def", "QmNyJpQkU1cEkBwMDhDNFstr42q55mqG5GE5Mgwug4xyGk", "13"},
			{"abc", "QmU7nuGs2djqK99UNsNgEPGh6GV4662p6WtsgccBNGTDxt", "62"},
			{"bar", "QmS21GuXiRMvJKHos4ZkEmQDmRBqRaF5tQS2CQCu2ne9sY", "14"},
			{"foo", "QmfAjGiVpTN56TXi6SBQtstit5BEw3sijKj1Qkxn6EXKzJ", "14"},
			{"QmVG2ZYCkV1S4TK8URA3a4RupBF17A8yAr4FqsRDXVJASr", "QmVG2ZYCkV1S4TK8URA3a4RupBF17A8yAr4FqsRDXVJASr", "229"},
		}
		require.Len(t, evs, len(want))
		for i, w := range want {
			require.Equal(t, w.name, evs[i].Name)
			require.Equal(t, "/ipfs/"+w.cid, evs[i].Path.String())
			require.Equal(t, w.size, evs[i].Size)
		}
		require.Equal(t, p, evs[len(evs)-1].Path)
	})

	t.Run("silent", func(t *testing.T) {
		p, evs, err := addWithEvents(ctx, api, twoLevelDir()(), options.Unixfs.Silent(true))
		require.NoError(t, err)
		require.Len(t, evs, 1)
		require.Equal(t, p, evs[0].Path)
	})

	t.Run("wrapped", func(t *testing.T) {
		p, evs, err := addWithEvents(ctx, api, flatDir(), options.Unixfs.Wrap(true), options.Unixfs.StdinName("t"))
		require.NoError(t, err)
		require.Len(t, evs, 4)
		require.Equal(t, "t/bar", evs[0].Name)
		require.Equal(t, "t/foo", evs[1].Name)
		require.Equal(t, "t", evs[2].Name)
		requireCid(t, "QmRKGpFfR32FVXdvJiHfo4WJ5TDYBsM1P9raAp1p6APWSp", evs[2].Path)
		require.Equal(t, p, evs[3].Path)
	})
}

func (tp *TestSuite) TestAddProgress(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	data := files.NewReaderFile(bytes.NewReader(bytes.Repeat([]byte{0}, 1000000)))
	p, evs, err := addWithEvents(ctx, api, data, options.Unixfs.Progress(true))
	require.NoError(t, err)
	requireCid(t, "QmXXNNbwe4zzpdMg62ZXvnX1oU7MwSrQ3vAEtuwFKCm1oD", p)

	var progress []int64
	for _, ev := range evs {
		if ev.Path == "" {
			progress = append(progress, ev.Bytes)
		}
	}
	require.NotEmpty(t, progress)
	require.Equal(t, int64(1000000), progress[len(progress)-1])
	for i := 1; i < len(progress); i++ {
		require.GreaterOrEqual(t, progress[i], progress[i-1])
	}
	require.Equal(t, p, evs[len(evs)-1].Path)
}

func (tp *TestSuite) TestAddTrickle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	data := strings.Repeat("aoeuidhtns", 200)
	balanced, err := api.Unixfs().Add(ctx, strFile(data)(), options.Unixfs.Chunker("size-4"))
	require.NoError(t, err)
	trickle, err := api.Unixfs().Add(ctx, strFile(data)(), options.Unixfs.Chunker("size-4"), options.Unixfs.Layout(options.TrickleLayout))
	require.NoError(t, err)
	require.NotEqual(t, balanced, trickle)

	r, err := api.Unixfs().Cat(ctx, trickle)
	require.NoError(t, err)
	defer r.Close()
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, data, string(got))
}

func (tp *TestSuite) TestAddMetadata(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	mtime := time.Unix(1700000000, 5000)
	p, err := api.Unixfs().Add(ctx, strFile(helloStr)(),
		options.Unixfs.Mode(0o640),
		options.Unixfs.Mtime(mtime.Unix(), uint32(mtime.Nanosecond())),
		options.Unixfs.Wrap(true),
		options.Unixfs.StdinName("f"),
	)
	require.NoError(t, err)

	var entries []coreiface.DirEntry
	for ent, err := range coreiface.LsIter(ctx, api.Unixfs(), p) {
		require.NoError(t, err)
		entries = append(entries, ent)
	}
	require.Len(t, entries, 1)
	require.Equal(t, "f", entries[0].Name)
	require.Equal(t, os.FileMode(0o640), entries[0].Mode)
	require.True(t, mtime.Equal(entries[0].ModTime), "mtime %s", entries[0].ModTime)
	require.Equal(t, uint64(len(helloStr)), entries[0].Size)

	// metadata changes the node, so the plain add differs
	plain, err := api.Unixfs().Add(ctx, strFile(helloStr)())
	require.NoError(t, err)
	wrappedFile, err := path.Join(p, "f")
	require.NoError(t, err)
	resolved, err := api.ResolvePath(ctx, wrappedFile)
	require.NoError(t, err)
	require.NotEqual(t, plain, resolved)

	r, err := api.Unixfs().Cat(ctx, wrappedFile)
	require.NoError(t, err)
	defer r.Close()
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, helloStr, string(got))
}

func (tp *TestSuite) TestGetEmptyFile(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	_, err := api.Unixfs().Add(ctx, files.NewBytesFile([]byte{}))
	require.NoError(t, err)

	nd, err := api.Unixfs().Get(ctx, path.FromString(emptyFile))
	require.NoError(t, err)

	f, ok := nd.(files.File)
	require.True(t, ok)
	content, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Empty(t, content)
}

func (tp *TestSuite) TestGetDir(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	edir, err := api.Object().New(ctx, options.Object.Type("unixfs-dir"))
	require.NoError(t, err)
	p := path.FromCid(edir.Cid())
	requireCid(t, emptyDir, p)

	nd, err := api.Unixfs().Get(ctx, p)
	require.NoError(t, err)
	_, ok := nd.(files.Directory)
	require.True(t, ok)

	dir, err := api.Unixfs().Add(ctx, twoLevelDir()())
	require.NoError(t, err)
	nd, err = api.Unixfs().Get(ctx, dir)
	require.NoError(t, err)
	requireSameFiles(t, twoLevelDir()(), nd)
}

func (tp *TestSuite) TestGetSymlink(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	dir := func() files.Node {
		return files.NewMapDirectory(map[string]files.Node{
			"foo":  files.NewBytesFile([]byte("hello1")),
			"link": files.NewLinkFile("foo", nil),
		})
	}
	p, err := api.Unixfs().Add(ctx, dir())
	require.NoError(t, err)

	nd, err := api.Unixfs().Get(ctx, p)
	require.NoError(t, err)
	requireSameFiles(t, dir(), nd)
}

func (tp *TestSuite) TestCat(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	data := strings.Repeat("0123456789", 100)
	p, err := api.Unixfs().Add(ctx, strFile(data)(), options.Unixfs.Chunker("size-32"))
	require.NoError(t, err)

	cat := func(opts ...options.UnixfsCatOption) string {
		t.Helper()
		r, err := api.Unixfs().Cat(ctx, p, opts...)
		require.NoError(t, err)
		defer r.Close()
		b, err := io.ReadAll(r)
		require.NoError(t, err)
		return string(b)
	}

	require.Equal(t, data, cat())
	require.Equal(t, data[100:], cat(options.Unixfs.Offset(100)))
	require.Equal(t, data[:50], cat(options.Unixfs.Length(50)))
	require.Equal(t, data[995:], cat(options.Unixfs.Offset(995), options.Unixfs.Length(50)))
	require.Equal(t, data[31:64], cat(options.Unixfs.Offset(31), options.Unixfs.Length(33)))
	require.Empty(t, cat(options.Unixfs.Length(0)))
	require.Empty(t, cat(options.Unixfs.Offset(int64(len(data)))))

	_, err = api.Unixfs().Cat(ctx, p, options.Unixfs.Offset(int64(len(data)+1)))
	require.Error(t, err)
}

func (tp *TestSuite) TestCatDir(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	p, err := api.Unixfs().Add(ctx, flatDir())
	require.NoError(t, err)

	_, err = api.Unixfs().Cat(ctx, p)
	require.ErrorIs(t, err, coreiface.ErrIsDir)

	r, err := api.Unixfs().Cat(ctx, p+"/foo")
	require.NoError(t, err)
	defer r.Close()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "hello1", string(b))
}

func (tp *TestSuite) TestLs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	p, err := api.Unixfs().Add(ctx, twoLevelDir()())
	require.NoError(t, err)

	ls := func(opts ...options.UnixfsLsOption) []coreiface.DirEntry {
		t.Helper()
		out := make(chan coreiface.DirEntry)
		lsErr := make(chan error, 1)
		go func() {
			lsErr <- api.Unixfs().Ls(ctx, p, out, opts...)
		}()
		var entries []coreiface.DirEntry
		for ent := range out {
			entries = append(entries, ent)
		}
		require.NoError(t, <-lsErr)
		return entries
	}

	entries := ls()
	require.Len(t, entries, 3)
	require.Equal(t, "abc", entries[0].Name)
	require.Equal(t, coreiface.TDirectory, entries[0].Type)
	require.Equal(t, "QmU7nuGs2djqK99UNsNgEPGh6GV4662p6WtsgccBNGTDxt", entries[0].Cid.String())
	require.Equal(t, "bar", entries[1].Name)
	require.Equal(t, coreiface.TFile, entries[1].Type)
	require.Equal(t, uint64(6), entries[1].Size)
	require.Equal(t, "QmS21GuXiRMvJKHos4ZkEmQDmRBqRaF5tQS2CQCu2ne9sY", entries[1].Cid.String())
	require.Equal(t, "foo", entries[2].Name)

	entries = ls(options.Unixfs.ResolveChildren(false))
	require.Len(t, entries, 3)
	for _, ent := range entries {
		require.Equal(t, coreiface.TUnknown, ent.Type)
		require.Zero(t, ent.Size)
	}

	entries = ls(options.Unixfs.UseCumulativeSize(true))
	require.Equal(t, uint64(62), entries[0].Size)
	require.Equal(t, uint64(14), entries[1].Size)
}

func (tp *TestSuite) TestLsIter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	p, err := api.Unixfs().Add(ctx, flatDir())
	require.NoError(t, err)

	var names []string
	for ent, err := range coreiface.LsIter(ctx, api.Unixfs(), p) {
		require.NoError(t, err)
		names = append(names, ent.Name)
	}
	require.Equal(t, []string{"bar", "foo"}, names)

	// stopping early does not leak the listing
	for range coreiface.LsIter(ctx, api.Unixfs(), p) {
		break
	}

	// errors are yielded last
	var gotErr error
	for _, err := range coreiface.LsIter(ctx, api.Unixfs(), p+"/missing") {
		gotErr = err
	}
	require.ErrorIs(t, gotErr, path.ErrPathNotFound)
}

func (tp *TestSuite) TestLsEmptyDir(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	p, err := api.Unixfs().Add(ctx, files.NewMapDirectory(map[string]files.Node{}))
	require.NoError(t, err)
	requireCid(t, emptyDir, p)

	var entries []coreiface.DirEntry
	for ent, err := range coreiface.LsIter(ctx, api.Unixfs(), p) {
		require.NoError(t, err)
		entries = append(entries, ent)
	}
	require.Empty(t, entries)
}

func (tp *TestSuite) TestLsSymlink(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	p, err := api.Unixfs().Add(ctx, files.NewMapDirectory(map[string]files.Node{
		"foo":  files.NewBytesFile([]byte("hello1")),
		"link": files.NewLinkFile("/foo/bar", nil),
	}))
	require.NoError(t, err)

	var entries []coreiface.DirEntry
	for ent, err := range coreiface.LsIter(ctx, api.Unixfs(), p) {
		require.NoError(t, err)
		entries = append(entries, ent)
	}
	require.Len(t, entries, 2)
	require.Equal(t, "link", entries[1].Name)
	require.Equal(t, coreiface.TSymlink, entries[1].Type)
	require.Equal(t, "/foo/bar", entries[1].Target)
	require.Equal(t, uint64(len("/foo/bar")), entries[1].Size)
}

func (tp *TestSuite) TestLsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	p, err := api.Unixfs().Add(ctx, twoLevelDir()())
	require.NoError(t, err)

	lsCtx, lsCancel := context.WithCancel(ctx)
	out := make(chan coreiface.DirEntry)
	lsErr := make(chan error, 1)
	go func() {
		lsErr <- api.Unixfs().Ls(lsCtx, p, out)
	}()

	<-out
	lsCancel()

	err = <-lsErr
	require.ErrorIs(t, err, coreiface.ErrCancelled)
	require.ErrorIs(t, err, context.Canceled)
	_, ok := <-out
	require.False(t, ok, "the channel is closed once Ls gives up")
}

func (tp *TestSuite) TestArchive(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	api := tp.makeAPI(t, ctx)

	dir, err := api.Unixfs().Add(ctx, twoLevelDir()())
	require.NoError(t, err)

	readTar := func(r io.Reader) map[string]string {
		t.Helper()
		out := map[string]string{}
		tr := tar.NewReader(r)
		for {
			hdr, err := tr.Next()
			if err == io.EOF {
				return out
			}
			require.NoError(t, err)
			b, err := io.ReadAll(tr)
			require.NoError(t, err)
			out[hdr.Name] = string(b)
		}
	}

	named, err := path.Join(dir, "abc")
	require.NoError(t, err)
	r, err := api.Unixfs().Archive(ctx, named, true, gzip.NoCompression)
	require.NoError(t, err)
	entries := readTar(r)
	require.Equal(t, "world", entries["abc/def"])
	require.Contains(t, entries, "abc")

	r, err = api.Unixfs().Archive(ctx, dir, true, gzip.BestSpeed)
	require.NoError(t, err)
	gz, err := gzip.NewReader(r)
	require.NoError(t, err)
	root := strings.TrimPrefix(dir.String(), "/ipfs/")
	entries = readTar(gz)
	require.Equal(t, "hello1", entries[root+"/foo"])
	require.Equal(t, "hello2", entries[root+"/bar"])

	// a single file can be fetched as plain compressed bytes
	file, err := api.Unixfs().Add(ctx, strFile(helloStr)())
	require.NoError(t, err)
	r, err = api.Unixfs().Archive(ctx, file, false, gzip.DefaultCompression)
	require.NoError(t, err)
	gz, err = gzip.NewReader(r)
	require.NoError(t, err)
	b, err := io.ReadAll(gz)
	require.NoError(t, err)
	require.Equal(t, helloStr, string(b))
}
