package http

import "net/http"

// HealthHandler reports basic liveness for the service. The marketplace
// probes it with the same bearer token it uses for the rest of the surface.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
