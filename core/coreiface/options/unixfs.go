package options

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ipfs/kubo-core/cidutil"

	cid "github.com/ipfs/go-cid"
)

type Layout int

const (
	BalancedLayout Layout = iota
	TrickleLayout
)

type UnixfsAddSettings struct {
	CidVersion   int
	HashFunction string

	RawLeaves    bool
	RawLeavesSet bool
	MaxLinks     int

	Chunker string
	Layout  Layout

	Pin      bool
	PinName  string
	OnlyHash bool
	Wrap     bool
	Hidden   bool
	// StdinName names a wrapped top-level file that has no name of its own.
	StdinName string

	Events   chan<- interface{}
	Silent   bool
	Progress bool

	PreserveMode  bool
	PreserveMtime bool
	Mode          os.FileMode
	Mtime         time.Time
}

type UnixfsLsSettings struct {
	ResolveChildren   bool
	UseCumulativeSize bool
}

type UnixfsCatSettings struct {
	Offset int64
	// Length of -1 reads to the end of the file.
	Length int64
}

type UnixfsAddOption func(*UnixfsAddSettings) error
type UnixfsLsOption func(*UnixfsLsSettings) error
type UnixfsCatOption func(*UnixfsCatSettings) error

// UnixfsAddOptions applies opts over the defaults and derives the CID
// builder. A CidVersion of -1 picks v0 for sha2-256 and v1 otherwise; CIDv1
// implies raw leaves unless RawLeaves was set explicitly.
func UnixfsAddOptions(opts ...UnixfsAddOption) (*UnixfsAddSettings, cid.Builder, error) {
	options := &UnixfsAddSettings{
		CidVersion:   -1,
		HashFunction: cidutil.DefaultHashFunction,

		RawLeaves:    false,
		RawLeavesSet: false,

		Chunker: "size-262144",
		Layout:  BalancedLayout,

		Pin:      false,
		OnlyHash: false,
		Wrap:     false,
		Hidden:   true,

		Events:   nil,
		Silent:   false,
		Progress: false,
	}

	for _, opt := range opts {
		err := opt(options)
		if err != nil {
			return nil, nil, err
		}
	}

	if options.Pin && options.OnlyHash {
		return nil, nil, errors.New("cannot pin content that is only hashed")
	}

	builder, err := cidutil.NewBuilder(options.HashFunction, options.CidVersion, cid.DagProtobuf)
	if err != nil {
		return nil, nil, err
	}
	options.CidVersion = int(builder.Version)

	// cidV1 -> raw blocks (by default)
	if options.CidVersion > 0 && !options.RawLeavesSet {
		options.RawLeaves = true
	}

	return options, builder, nil
}

func UnixfsLsOptions(opts ...UnixfsLsOption) (*UnixfsLsSettings, error) {
	options := &UnixfsLsSettings{
		ResolveChildren: true,
	}

	for _, opt := range opts {
		err := opt(options)
		if err != nil {
			return nil, err
		}
	}

	return options, nil
}

func UnixfsCatOptions(opts ...UnixfsCatOption) (*UnixfsCatSettings, error) {
	options := &UnixfsCatSettings{
		Offset: 0,
		Length: -1,
	}

	for _, opt := range opts {
		err := opt(options)
		if err != nil {
			return nil, err
		}
	}

	if options.Offset < 0 {
		return nil, fmt.Errorf("cannot specify negative offset: %d", options.Offset)
	}
	if options.Length < -1 {
		return nil, fmt.Errorf("cannot specify negative length: %d", options.Length)
	}
	return options, nil
}

type unixfsOpts struct{}

var Unixfs unixfsOpts

// CidVersion specifies which CID version to use. Defaults to 0 unless an
// option that depends on CIDv1 is passed.
func (unixfsOpts) CidVersion(version int) UnixfsAddOption {
	return func(settings *UnixfsAddSettings) error {
		settings.CidVersion = version
		return nil
	}
}

// Hash function to use. Implies CIDv1 if not set to sha2-256 (default).
func (unixfsOpts) Hash(name string) UnixfsAddOption {
	return func(settings *UnixfsAddSettings) error {
		settings.HashFunction = name
		return nil
	}
}

// RawLeaves specifies whether to use raw blocks for leaves (data nodes with no
// links) instead of wrapping them with unixfs structures.
func (unixfsOpts) RawLeaves(enable bool) UnixfsAddOption {
	return func(settings *UnixfsAddSettings) error {
		settings.RawLeaves = enable
		settings.RawLeavesSet = true
		return nil
	}
}

// MaxFileLinks specifies the maximum number of children for UnixFS file
// nodes.
func (unixfsOpts) MaxFileLinks(n int) UnixfsAddOption {
	return func(settings *UnixfsAddSettings) error {
		if n < 2 {
			return fmt.Errorf("max file links must be at least 2, got %d", n)
		}
		settings.MaxLinks = n
		return nil
	}
}

// Chunker specifies settings for the chunking algorithm to use.
//
// Default: size-262144, formats:
// size-[bytes] - Simple chunker splitting data into blocks of n bytes
// rabin-[min]-[avg]-[max] - Rabin chunker
// buzhash - Buzhash chunker
func (unixfsOpts) Chunker(chunker string) UnixfsAddOption {
	return func(settings *UnixfsAddSettings) error {
		settings.Chunker = chunker
		return nil
	}
}

// Layout tells the adder how to balance data between leaves.
// options.BalancedLayout is the default, it's optimized for static seekable
// files.
// options.TrickleLayout is optimized for streaming data,
func (unixfsOpts) Layout(layout Layout) UnixfsAddOption {
	return func(settings *UnixfsAddSettings) error {
		settings.Layout = layout
		return nil
	}
}

// Pin tells the adder to pin the file root recursively after adding
func (unixfsOpts) Pin(pin bool) UnixfsAddOption {
	return func(settings *UnixfsAddSettings) error {
		settings.Pin = pin
		return nil
	}
}

// PinName names the pin created by Pin. The name becomes one of the pin
// owners.
func (unixfsOpts) PinName(name string) UnixfsAddOption {
	return func(settings *UnixfsAddSettings) error {
		settings.PinName = name
		return nil
	}
}

// HashOnly will make the adder calculate data hash without storing it in the
// blockstore or announcing it to the network
func (unixfsOpts) HashOnly(hashOnly bool) UnixfsAddOption {
	return func(settings *UnixfsAddSettings) error {
		settings.OnlyHash = hashOnly
		return nil
	}
}

// Wrap tells the adder to wrap the added file structure with an additional
// directory.
func (unixfsOpts) Wrap(wrap bool) UnixfsAddOption {
	return func(settings *UnixfsAddSettings) error {
		settings.Wrap = wrap
		return nil
	}
}

// Hidden enables adding of hidden files (files prefixed with '.')
func (unixfsOpts) Hidden(hidden bool) UnixfsAddOption {
	return func(settings *UnixfsAddSettings) error {
		settings.Hidden = hidden
		return nil
	}
}

// StdinName is the name set for files which don't specify FilePath as
// os.Stdin.Name()
func (unixfsOpts) StdinName(name string) UnixfsAddOption {
	return func(settings *UnixfsAddSettings) error {
		settings.StdinName = name
		return nil
	}
}

// Events specifies channel which will be used to report events about ongoing
// Add operation.
//
// Note that if this channel blocks it may slowdown the adder
func (unixfsOpts) Events(sink chan<- interface{}) UnixfsAddOption {
	return func(settings *UnixfsAddSettings) error {
		settings.Events = sink
		return nil
	}
}

// Silent reduces event output
func (unixfsOpts) Silent(silent bool) UnixfsAddOption {
	return func(settings *UnixfsAddSettings) error {
		settings.Silent = silent
		return nil
	}
}

// Progress tells the adder whether to enable progress events
func (unixfsOpts) Progress(enable bool) UnixfsAddOption {
	return func(settings *UnixfsAddSettings) error {
		settings.Progress = enable
		return nil
	}
}

// PreserveMode tells the adder to store the file permissions
func (unixfsOpts) PreserveMode(enable bool) UnixfsAddOption {
	return func(settings *UnixfsAddSettings) error {
		settings.PreserveMode = enable
		return nil
	}
}

// PreserveMtime tells the adder to store the file modification time
func (unixfsOpts) PreserveMtime(enable bool) UnixfsAddOption {
	return func(settings *UnixfsAddSettings) error {
		settings.PreserveMtime = enable
		return nil
	}
}

// Mode represents a unix file mode
func (unixfsOpts) Mode(mode os.FileMode) UnixfsAddOption {
	return func(settings *UnixfsAddSettings) error {
		settings.Mode = mode
		return nil
	}
}

// Mtime represents a unix file mtime
func (unixfsOpts) Mtime(seconds int64, nsecs uint32) UnixfsAddOption {
	return func(settings *UnixfsAddSettings) error {
		if nsecs > 999999999 {
			return errors.New("mtime nanoseconds must be in range [1, 999999999]")
		}
		settings.Mtime = time.Unix(seconds, int64(nsecs))
		return nil
	}
}

// ResolveChildren resolves child nodes so Ls can report their type and
// size. Default: true
func (unixfsOpts) ResolveChildren(resolve bool) UnixfsLsOption {
	return func(settings *UnixfsLsSettings) error {
		settings.ResolveChildren = resolve
		return nil
	}
}

// UseCumulativeSize reports the link size (the whole subtree) instead of
// the file size.
func (unixfsOpts) UseCumulativeSize(use bool) UnixfsLsOption {
	return func(settings *UnixfsLsSettings) error {
		settings.UseCumulativeSize = use
		return nil
	}
}

// Offset is where Cat starts reading.
func (unixfsOpts) Offset(offset int64) UnixfsCatOption {
	return func(settings *UnixfsCatSettings) error {
		settings.Offset = offset
		return nil
	}
}

// Length caps how many bytes Cat returns; -1 means no limit.
func (unixfsOpts) Length(length int64) UnixfsCatOption {
	return func(settings *UnixfsCatSettings) error {
		settings.Length = length
		return nil
	}
}
