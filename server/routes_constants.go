package server

// Route path constants
const (
	RouteWellKnownJWKS = "/.well-known/jwks.json"
	RouteHealth        = "/healthz"

	// API Routes (bearer token required)
	RouteAPIMe     = "/api/me"
	RouteAPILogout = "/api/logout"
)
