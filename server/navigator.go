package server

import (
	"net/http"
	"sync"
)

// httpNavigator turns a navigation into the response of the current request. Only the
// first navigation writes; the response can carry a single redirect.
type httpNavigator struct {
	w    http.ResponseWriter
	r    *http.Request
	once sync.Once
	to   string
}

func newHTTPNavigator(w http.ResponseWriter, r *http.Request) *httpNavigator {
	return &httpNavigator{w: w, r: r}
}

func (n *httpNavigator) Navigate(path string) {
	n.once.Do(func() {
		n.to = path
		redirectSuccess(n.w, n.r, path)
	})
}

// navigated returns the path navigated to, or "" if no navigation happened
func (n *httpNavigator) navigated() string {
	return n.to
}
