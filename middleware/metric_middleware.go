package middleware

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
)

// UnmatchedRoute labels requests no route matched, such as 404s and 405s.
const UnmatchedRoute = "unmatched"

type routeKey struct{}

// routeLabel is created per request before routing and filled in by
// RouteTemplate once mux has matched a route.
type routeLabel struct {
	template string
}

func withRouteLabel(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		label := &routeLabel{template: UnmatchedRoute}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), routeKey{}, label)))
	})
}

// RouteTemplate records the matched route template, so access logs and
// request metrics are labelled by "/api/folders/{id}" rather than by every
// id and date. Install it with Router.Use.
func RouteTemplate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if label, ok := r.Context().Value(routeKey{}).(*routeLabel); ok {
			if current := mux.CurrentRoute(r); current != nil {
				if tpl, err := current.GetPathTemplate(); err == nil {
					label.template = tpl
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}

// routeOf returns the route template recorded for r.
func routeOf(r *http.Request) string {
	if label, ok := r.Context().Value(routeKey{}).(*routeLabel); ok {
		return label.template
	}
	return UnmatchedRoute
}
