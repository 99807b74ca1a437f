package internal

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// HandlerFunc serves one route. A returned error goes to the app's
// ErrorHandler unless the response has already started.
type HandlerFunc func(c Context) error

// Middleware decorates a HandlerFunc. The first middleware given to a
// route or to WithMiddleware runs outermost.
type Middleware func(next HandlerFunc) HandlerFunc

// ErrorHandler turns an error returned by a handler into a response.
type ErrorHandler func(Context, error) error

// Handler groups related routes:
//
//	func (h *Email) Routes(r internal.Router) {
//	    r.POST("/send", h.send)
//	}
type Handler interface {
	Routes(r Router)
}

// Router is the subset of chi the handlers need.
type Router interface {
	GET(path string, h HandlerFunc, mw ...Middleware)
	POST(path string, h HandlerFunc, mw ...Middleware)

	// Route declares the routes added by fn below pattern.
	// A pattern can be routed only once per router.
	Route(pattern string, fn func(r Router))

	// Use adds middleware to every route of this router.
	Use(mw ...Middleware)

	// Mount serves a plain http.Handler below pattern.
	Mount(pattern string, h http.Handler)
}

type router struct {
	mux chi.Router
	app *App
}

func (r *router) GET(path string, h HandlerFunc, mw ...Middleware) {
	r.mux.Get(path, r.app.serve(chain(h, mw)))
}

func (r *router) POST(path string, h HandlerFunc, mw ...Middleware) {
	r.mux.Post(path, r.app.serve(chain(h, mw)))
}

func (r *router) Route(pattern string, fn func(Router)) {
	r.mux.Route(pattern, func(sub chi.Router) {
		fn(&router{mux: sub, app: r.app})
	})
}

func (r *router) Use(mw ...Middleware) {
	for _, m := range mw {
		r.mux.Use(r.app.adapt(m))
	}
}

func (r *router) Mount(pattern string, h http.Handler) {
	r.mux.Mount(pattern, h)
}

// chain applies mw so that mw[0] ends up outermost.
func chain(h HandlerFunc, mw []Middleware) HandlerFunc {
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return h
}
