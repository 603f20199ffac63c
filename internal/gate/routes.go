package gate

import "strings"

// RouteClass is the authorization category of a request path.
type RouteClass int

const (
	// RouteProtected requires a session.
	RouteProtected RouteClass = iota
	// RoutePublic is reachable without a session.
	RoutePublic
	// RouteAuthOnly is public, but signed-in users are sent to their profile.
	RouteAuthOnly
)

func (c RouteClass) String() string {
	switch c {
	case RoutePublic:
		return "public"
	case RouteAuthOnly:
		return "auth"
	default:
		return "protected"
	}
}

// PublicRoutes are reachable without authentication.
var PublicRoutes = []string{
	"/",
	"/login",
	"/register",
	"/forgot-password",
	"/reset-password",
	"/about",
	"/terms",
	"/privacy",
}

// AuthRoutes are the sign-in flow pages, a subset of PublicRoutes.
var AuthRoutes = []string{
	"/login",
	"/register",
	"/forgot-password",
	"/reset-password",
}

// Classify maps a request path to its route class.
func Classify(path string) RouteClass {
	if matchesAny(path, AuthRoutes) {
		return RouteAuthOnly
	}
	if matchesAny(path, PublicRoutes) {
		return RoutePublic
	}
	return RouteProtected
}

// matchesAny reports whether path equals a route or sits under it.
func matchesAny(path string, routes []string) bool {
	for _, route := range routes {
		if path == route || strings.HasPrefix(path, route+"/") {
			return true
		}
	}
	return false
}
