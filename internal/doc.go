// Package internal is the HTTP core of mailgate.
//
// It wraps a chi router with a small error-returning handler model:
//
//   - App: routing, middleware, error handling and graceful shutdown
//   - Context: request/response access, JSON helpers, request-scoped logging
//   - Router: the interface handlers use to declare routes
//   - Handler, HandlerFunc, Middleware, ErrorHandler
//   - HTTPError: an error that knows its status code
//
// Context embeds context.Context, so it can be passed straight to
// blocking calls such as a dispatch:
//
//	func (h *Email) send(c internal.Context) error {
//	    res, err := h.dispatcher.Dispatch(c, msg)
//	    if err != nil {
//	        return err
//	    }
//	    return c.JSON(http.StatusOK, res)
//	}
//
// Handlers return errors instead of writing them. The App passes every
// non-nil error to the configured ErrorHandler unless the response has
// already been started.
//
// Run blocks until SIGINT, SIGTERM or cancellation of the base context,
// then drains in-flight requests and runs shutdown hooks in order.
package internal
