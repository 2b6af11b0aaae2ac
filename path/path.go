// Package path contains utilities to work with ipfs paths.
package path

import (
	"errors"
	"fmt"
	gopath "path"
	"strings"

	cid "github.com/ipfs/go-cid"
)

var (
	// ErrBadPath is returned when a given path is incorrectly formatted
	ErrBadPath = errors.New("invalid 'ipfs ref' path")

	// ErrNoComponents is used when Paths after a protocol
	// do not contain at least one component
	ErrNoComponents = errors.New(
		"path must contain at least one component")
)

// Namespaces recognised at the head of a path.
const (
	IPFSNamespace = "ipfs"
	IPNSNamespace = "ipns"
)

// A Path represents an ipfs content path:
//   - /ipfs/<cid>/path/to/file
//   - /ipns/<name>/path/to/folder
//   - <cid>/path/to/file
type Path string

// FromString safely converts a string type to a Path type.
func FromString(s string) Path {
	return Path(s)
}

// FromCid safely converts a cid.Cid type to a Path type.
func FromCid(c cid.Cid) Path {
	return Path("/" + IPFSNamespace + "/" + c.String())
}

// Segments returns the different elements of a path
// (elements are delimited by a /).
func (p Path) Segments() []string {
	cleaned := gopath.Clean(string(p))
	segments := strings.Split(cleaned, "/")

	// Ignore leading slash
	if len(segments[0]) == 0 {
		segments = segments[1:]
	}

	return segments
}

// String converts a path to string.
func (p Path) String() string {
	return string(p)
}

// Namespace returns the first segment of an absolute path, or "" for a
// bare cid path.
func (p Path) Namespace() string {
	if !strings.HasPrefix(string(p), "/") {
		return ""
	}
	return p.Segments()[0]
}

// IsJustAKey returns true if the path is of the form <key> or /ipfs/<key>.
func (p Path) IsJustAKey() bool {
	parts := p.Segments()
	return len(parts) == 2 && parts[0] == IPFSNamespace
}

// PopLastSegment returns a new Path without its final segment, and the final
// segment, separately. If there is no more to pop (the path is just a key),
// the original path is returned.
func (p Path) PopLastSegment() (Path, string, error) {
	if p.IsJustAKey() {
		return p, "", nil
	}

	segs := p.Segments()
	newPath, err := ParsePath("/" + strings.Join(segs[:len(segs)-1], "/"))
	if err != nil {
		return "", "", err
	}

	return newPath, segs[len(segs)-1], nil
}

// FromSegments returns a path given its different segments.
func FromSegments(prefix string, seg ...string) (Path, error) {
	return ParsePath(prefix + strings.Join(seg, "/"))
}

// Join appends segments to p.
func Join(p Path, segs ...string) (Path, error) {
	return FromSegments(strings.TrimRight(p.String(), "/")+"/", segs...)
}

// ParsePath returns a well-formed ipfs Path.
// The returned path will always be prefixed with /ipfs/ or /ipns/.
// The prefix will be added if not present in the given string.
// This function will return an error when the given string is
// not a valid ipfs path.
func ParsePath(txt string) (Path, error) {
	parts := strings.Split(txt, "/")
	if len(parts) == 1 {
		kp, err := ParseCidToPath(txt)
		if err == nil {
			return kp, nil
		}
	}

	// if the path doesnt begin with a '/'
	// we expect this to start with a hash, and be an 'ipfs' path
	if parts[0] != "" {
		if _, err := decodeCid(parts[0]); err != nil {
			return "", &pathError{error: err, path: txt}
		}
		// The case when the path starts with hash without a protocol prefix
		return Path("/" + IPFSNamespace + "/" + txt), nil
	}

	if len(parts) < 3 {
		return "", &pathError{error: ErrBadPath, path: txt}
	}

	switch parts[1] {
	case IPFSNamespace:
		if parts[2] == "" {
			return "", &pathError{error: ErrNoComponents, path: txt}
		}
		if _, err := decodeCid(parts[2]); err != nil {
			return "", &pathError{error: err, path: txt}
		}
	case IPNSNamespace:
		if parts[2] == "" {
			return "", &pathError{error: ErrNoComponents, path: txt}
		}
	default:
		return "", &pathError{error: ErrBadPath, path: txt}
	}

	return Path(txt), nil
}

// ParseCidToPath takes a CID in string form and returns a valid ipfs Path.
func ParseCidToPath(txt string) (Path, error) {
	if txt == "" {
		return "", ErrNoComponents
	}

	c, err := decodeCid(txt)
	if err != nil {
		return "", err
	}

	return FromCid(c), nil
}

// IsValid checks if a path is a valid ipfs Path.
func (p *Path) IsValid() error {
	_, err := ParsePath(p.String())
	return err
}

// SplitList splits strings separated by the OS list separator.
func SplitList(pth string) []string {
	return strings.Split(pth, "/")
}

// SplitAbsPath cleans up and splits fpath. It extracts the first component
// (which must be a CID) and returns it separately.
func SplitAbsPath(fpath Path) (cid.Cid, []string, error) {
	parts := fpath.Segments()
	if parts[0] == IPFSNamespace {
		parts = parts[1:]
	}

	// if nothing, bail.
	if len(parts) == 0 || parts[0] == "" {
		return cid.Undef, nil, &pathError{error: ErrNoComponents, path: fpath.String()}
	}

	c, err := decodeCid(parts[0])
	if err != nil {
		return cid.Undef, nil, &pathError{error: err, path: fpath.String()}
	}

	return c, parts[1:], nil
}

func decodeCid(s string) (cid.Cid, error) {
	c, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, fmt.Errorf("%w: invalid cid %q: %w", ErrBadPath, s, err)
	}
	return c, nil
}

type pathError struct {
	error error
	path  string
}

func (e *pathError) Error() string {
	return fmt.Sprintf("invalid path %q: %s", e.path, e.error)
}

func (e *pathError) Unwrap() error {
	return e.error
}

func (e *pathError) Path() string {
	return e.path
}
