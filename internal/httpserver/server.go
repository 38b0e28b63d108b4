package httpserver

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Server is the request-plane router: API handlers, webhook receivers, and
// whatever ops endpoints the binary mounts on top.
type Server struct {
	Mux *mux.Router
}

func New() *Server {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	})
	return &Server{Mux: r}
}
