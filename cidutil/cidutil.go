// Package cidutil computes content identifiers for block data.
//
// A Builder pairs a CID version, a codec and a multihash function. It is the
// only place where hash function names from configuration are turned into
// multihash codes, so configuration errors surface here before any block is
// written.
package cidutil

import (
	"errors"
	"fmt"

	cid "github.com/ipfs/go-cid"
	mbase "github.com/multiformats/go-multibase"
	mc "github.com/multiformats/go-multicodec"
	mh "github.com/multiformats/go-multihash"
	mhcore "github.com/multiformats/go-multihash/core"
)

// DefaultHashFunction is used when no hash function is configured.
const DefaultHashFunction = "sha2-256"

var (
	// ErrUnsupportedAlgorithm is returned for hash functions that are not
	// registered with the multihash registry.
	ErrUnsupportedAlgorithm = errors.New("unsupported hash algorithm")

	// ErrInvalidCidV0 is returned when CIDv0 is requested with anything
	// other than dag-pb and sha2-256.
	ErrInvalidCidV0 = errors.New("cid version 0 only supports dag-pb with sha2-256")
)

// Builder computes CIDs. It implements cid.Builder.
type Builder struct {
	Version  uint64
	Codec    uint64
	HashFunc uint64
}

var _ cid.Builder = Builder{}

// V0Builder is the legacy dag-pb/sha2-256 builder.
var V0Builder = Builder{Version: 0, Codec: cid.DagProtobuf, HashFunc: mh.SHA2_256}

// NewBuilder validates the hash name, version and codec combination.
// A version of -1 selects CIDv0 when possible and CIDv1 otherwise.
func NewBuilder(hashName string, version int, codec uint64) (Builder, error) {
	if hashName == "" {
		hashName = DefaultHashFunction
	}
	code, err := HashCode(hashName)
	if err != nil {
		return Builder{}, err
	}

	switch version {
	case -1:
		if code == mh.SHA2_256 && codec == cid.DagProtobuf {
			version = 0
		} else {
			version = 1
		}
	case 0:
		if code != mh.SHA2_256 || codec != cid.DagProtobuf {
			return Builder{}, fmt.Errorf("%w: got %s/%s", ErrInvalidCidV0, hashName, mc.Code(codec))
		}
	case 1:
	default:
		return Builder{}, fmt.Errorf("unknown CID version: %d", version)
	}

	return Builder{Version: uint64(version), Codec: codec, HashFunc: code}, nil
}

// HashCode resolves a multihash name (for example "sha2-256" or "blake3")
// to its code and checks that a hasher is registered for it.
func HashCode(name string) (uint64, error) {
	code, ok := mh.Names[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
	}
	if _, err := mhcore.GetHasher(code); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
	}
	return code, nil
}

// CodecFromName parses a multicodec name such as "dag-pb" or "raw".
func CodecFromName(name string) (uint64, error) {
	var c mc.Code
	if err := c.Set(name); err != nil {
		return 0, err
	}
	return uint64(c), nil
}

// Prefix returns the cid.Prefix equivalent of b.
func (b Builder) Prefix() cid.Prefix {
	return cid.Prefix{
		Version:  b.Version,
		Codec:    b.Codec,
		MhType:   b.HashFunc,
		MhLength: -1,
	}
}

// Sum hashes data and returns its CID.
func (b Builder) Sum(data []byte) (cid.Cid, error) {
	if _, err := mhcore.GetHasher(b.HashFunc); err != nil {
		return cid.Undef, fmt.Errorf("%w: code 0x%x", ErrUnsupportedAlgorithm, b.HashFunc)
	}
	return b.Prefix().Sum(data)
}

func (b Builder) GetCodec() uint64 {
	return b.Codec
}

// WithCodec returns a copy of b using codec c. Switching a CIDv0 builder
// away from dag-pb upgrades it to CIDv1.
func (b Builder) WithCodec(c uint64) cid.Builder {
	if c == b.Codec {
		return b
	}
	nb := b
	nb.Codec = c
	if nb.Version == 0 && c != cid.DagProtobuf {
		nb.Version = 1
	}
	return nb
}

// FromCidBuilder converts any cid.Builder to a Builder by inspecting the
// CID it produces for empty input.
func FromCidBuilder(cb cid.Builder) (Builder, error) {
	if b, ok := cb.(Builder); ok {
		return b, nil
	}
	c, err := cb.Sum(nil)
	if err != nil {
		return Builder{}, err
	}
	p := c.Prefix()
	return Builder{Version: p.Version, Codec: p.Codec, HashFunc: p.MhType}, nil
}

// Format renders c in the named multibase. CIDv0 can only be expressed in
// base58btc, so other bases upgrade it to CIDv1.
func Format(c cid.Cid, base string) (string, error) {
	if base == "" {
		return c.String(), nil
	}
	enc, err := mbase.EncoderByName(base)
	if err != nil {
		return "", err
	}
	if c.Version() == 0 && enc.Encoding() != mbase.Base58BTC {
		c = cid.NewCidV1(c.Type(), c.Hash())
	}
	return c.Encode(enc), nil
}
