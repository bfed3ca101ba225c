package runtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/peeyushmeher/cleanswift/libs/httpx"
	"golang.org/x/sync/errgroup"
)

// ReadyCheck is a named dependency check for /readyz.
type ReadyCheck struct {
	Name  string
	Check func(context.Context) error
}

// readyBudget bounds each /readyz probe so a hung dependency cannot stall the kubelet.
const readyBudget = 2 * time.Second

// NewBaseMuxWithReady registers /healthz (process liveness) and /readyz, which runs all
// checks concurrently and reports each dependency's result as JSON.
func NewBaseMuxWithReady(checks ...ReadyCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		results, ready := runChecks(r.Context(), checks)
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		httpx.WriteJSON(w, status, results)
	})
	return mux
}

func runChecks(ctx context.Context, checks []ReadyCheck) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, readyBudget)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make(map[string]string, len(checks))
		ready   = true
	)
	var g errgroup.Group
	for _, check := range checks {
		if check.Check == nil {
			continue
		}
		name := check.Name
		if name == "" {
			name = "dependency"
		}
		g.Go(func() error {
			err := check.Check(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				results[name] = err.Error()
				ready = false
				return nil
			}
			results[name] = "ok"
			return nil
		})
	}
	_ = g.Wait()
	return results, ready
}
