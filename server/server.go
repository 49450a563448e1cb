package server

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/gorilla/mux"

	v1 "github.com/openshelf/openshelf/api/v1"
	"github.com/openshelf/openshelf/circulation"
	"github.com/openshelf/openshelf/config"
	"github.com/openshelf/openshelf/search"
	"github.com/openshelf/openshelf/store"
	"github.com/openshelf/openshelf/version"
)

// StartServer starts the HTTP server
func StartServer(ctx context.Context, store *store.Store, searchService *search.Service, circulationService *circulation.Service) (*http.Server, error) {
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.Opts.Host, config.Opts.Port),
		Handler: setupHandler(store, searchService, circulationService),
	}

	startHTTPServer(server)

	return server, nil
}

func startHTTPServer(server *http.Server) {
	go func() {
		fmt.Println("Starting HTTP server in:", server.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			fmt.Println("HTTP server error", err)
			os.Exit(1)
		}
	}()
}

func setupHandler(store *store.Store, searchService *search.Service, circulationService *circulation.Service) http.Handler {
	router := mux.NewRouter()

	v1.Server(router, store, searchService, circulationService)

	router.HandleFunc("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Ping(); err != nil {
			http.Error(w, "Database Connection Error", http.StatusInternalServerError)
			return
		}

		w.Write([]byte("OK"))
	}).Name("healthcheck")

	router.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(version.GetCurrentVersion()))
	}).Name("version")

	return router
}
