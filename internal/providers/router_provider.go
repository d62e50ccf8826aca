package providers

import (
	"net/http"
	"rsd/internal/structures"
	"sort"
)

type RouterProviderInterface interface {
	Get(url string, handler http.Handler)
	Post(url string, handler http.Handler)
	Delete(url string, handler http.Handler)
	GetRoutes() []structures.Route
}

// RouterProvider collects method-scoped handlers and folds them into one
// route per url, so the same url can carry GET, POST and DELETE without
// colliding in the server mux.
type RouterProvider struct {
	byUrl map[string]map[string]http.Handler
}

func (rp *RouterProvider) add(method, url string, handler http.Handler) {
	if rp.byUrl[url] == nil {
		rp.byUrl[url] = make(map[string]http.Handler)
	}
	rp.byUrl[url][method] = handler
}

func (rp *RouterProvider) Get(url string, handler http.Handler) {
	rp.add(http.MethodGet, url, handler)
}

func (rp *RouterProvider) Post(url string, handler http.Handler) {
	rp.add(http.MethodPost, url, handler)
}

func (rp *RouterProvider) Delete(url string, handler http.Handler) {
	rp.add(http.MethodDelete, url, handler)
}

func (rp *RouterProvider) GetRoutes() []structures.Route {
	routes := make([]structures.Route, 0, len(rp.byUrl))
	for url, byMethod := range rp.byUrl {
		routes = append(routes, structures.Route{
			Url:     url,
			Handler: methodHandler(byMethod),
		})
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].Url < routes[j].Url })
	return routes
}

func NewRouterProvider() RouterProviderInterface {
	return &RouterProvider{byUrl: make(map[string]map[string]http.Handler)}
}

func methodHandler(byMethod map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler, ok := byMethod[r.Method]
		if !ok {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
