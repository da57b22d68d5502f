package httpx

import "net/http"

// healthHandler reports process liveness for the load balancer. It touches no
// dependency on purpose: a worker whose store or Redis is briefly unreachable
// must still count as alive, or a backend blip cascades into a restart storm.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
