package tenant

import "errors"

// Route is the control-plane routing projection for one clinic: which
// physical database it lives in and whether routing is currently enabled.
type Route struct {
	DatabaseName string
	Active       bool
}

// ErrRouteNotFound is returned by route resolvers when a clinic id has no
// usable registry record (missing, or missing a database identifier).
var ErrRouteNotFound = errors.New("clinic route not found")
