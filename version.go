// Package ipfs carries the kubo-core version information.
package ipfs

import (
	"fmt"
	"regexp"
	"runtime"

	"github.com/ipfs/kubo-core/repo/fsrepo"
)

// CurrentCommit is the current git commit, this is set as a ldflag in the Makefile
var CurrentCommit string

// CurrentVersionNumber is the current application's version literal
const CurrentVersionNumber = "0.1.0-dev"

const maxVersionLen = 64

var onlyASCII = regexp.MustCompile("[[:^ascii:]]")

// GetUserAgentVersion identifies this build, e.g. in trace resources.
//
// Note: This will end in `/` when no commit is available. This is expected.
func GetUserAgentVersion() string {
	return TrimVersion("kubo-core/" + CurrentVersionNumber + "/" + CurrentCommit)
}

// TrimVersion strips non-ASCII characters and caps the length.
func TrimVersion(version string) string {
	ascii := onlyASCII.ReplaceAllLiteralString(version, "")
	if len(ascii) > maxVersionLen {
		ascii = ascii[:maxVersionLen]
	}
	return ascii
}

type VersionInfo struct {
	Version string
	Commit  string
	Repo    string
	System  string
	Golang  string
}

func GetVersionInfo() *VersionInfo {
	return &VersionInfo{
		Version: CurrentVersionNumber,
		Commit:  CurrentCommit,
		Repo:    fmt.Sprint(fsrepo.RepoVersion),
		System:  runtime.GOARCH + "/" + runtime.GOOS,
		Golang:  runtime.Version(),
	}
}
