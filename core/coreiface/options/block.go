package options

import (
	"github.com/ipfs/kubo-core/cidutil"

	cid "github.com/ipfs/go-cid"
)

type BlockPutSettings struct {
	Codec        string
	HashFunction string
	CidVersion   int
	Pin          bool
}

type BlockRmSettings struct {
	Force bool
}

type BlockPutOption func(*BlockPutSettings) error
type BlockRmOption func(*BlockRmSettings) error

// BlockPutOptions applies opts and returns the builder used to compute the
// block CID. The default raw codec and sha2-256 produce CIDv1; dag-pb with
// sha2-256 keeps CIDv0 unless a version is forced.
func BlockPutOptions(opts ...BlockPutOption) (*BlockPutSettings, cid.Builder, error) {
	options := &BlockPutSettings{
		Codec:        "raw",
		HashFunction: cidutil.DefaultHashFunction,
		CidVersion:   -1,
		Pin:          false,
	}

	for _, opt := range opts {
		err := opt(options)
		if err != nil {
			return nil, nil, err
		}
	}

	codec, err := cidutil.CodecFromName(options.Codec)
	if err != nil {
		return nil, nil, err
	}
	builder, err := cidutil.NewBuilder(options.HashFunction, options.CidVersion, codec)
	if err != nil {
		return nil, nil, err
	}
	return options, builder, nil
}

func BlockRmOptions(opts ...BlockRmOption) (*BlockRmSettings, error) {
	options := &BlockRmSettings{
		Force: false,
	}

	for _, opt := range opts {
		err := opt(options)
		if err != nil {
			return nil, err
		}
	}
	return options, nil
}

type blockOpts struct{}

var Block blockOpts

// Format is an option for Block.Put which specifies the multicodec to use to
// serialize the object. Default is "raw"
func (blockOpts) Format(codec string) BlockPutOption {
	return func(settings *BlockPutSettings) error {
		settings.Codec = codec
		return nil
	}
}

// Hash is an option for Block.Put which specifies the multihash function
// used to hash the block. Default is "sha2-256"
func (blockOpts) Hash(name string) BlockPutOption {
	return func(settings *BlockPutSettings) error {
		settings.HashFunction = name
		return nil
	}
}

// CidVersion forces the CID version of the stored block.
func (blockOpts) CidVersion(version int) BlockPutOption {
	return func(settings *BlockPutSettings) error {
		settings.CidVersion = version
		return nil
	}
}

// Pin is an option for Block.Put which specifies whether to (recursively) pin
// added blocks
func (blockOpts) Pin(pin bool) BlockPutOption {
	return func(settings *BlockPutSettings) error {
		settings.Pin = pin
		return nil
	}
}

// Force is an option for Block.Rm which, when set to true, will ignore
// non-existing blocks
func (blockOpts) Force(force bool) BlockRmOption {
	return func(settings *BlockRmSettings) error {
		settings.Force = force
		return nil
	}
}
