package fsrepo

import (
	"sync"

	mprome "github.com/ipfs/go-metrics-prometheus"
)

var (
	injectOnce sync.Once
	injectErr  error
)

// InjectPrometheus routes the metrics of "measure" datastores to the default
// Prometheus registry. It must run before the repo is opened; later calls
// are no-ops.
func InjectPrometheus() error {
	injectOnce.Do(func() {
		injectErr = mprome.Inject()
	})
	return injectErr
}
