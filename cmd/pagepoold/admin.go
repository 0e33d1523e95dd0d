// File: cmd/pagepoold/admin.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/momentics/hioload-mem/pool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/unrolled/render"
	"github.com/urfave/negroni"
)

// newAdminHandler serves metrics and pool control. shutdown must leave no
// caller touching pool memory before it returns; pages are freed on the next tick.
func newAdminHandler(p *pool.PagePool, shutdown func()) http.Handler {
	rd := render.New(render.Options{IndentJSON: true})

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/pool/stats", func(w http.ResponseWriter, r *http.Request) {
		rd.JSON(w, http.StatusOK, p.Stats())
	}).Methods(http.MethodGet)
	router.HandleFunc("/pool/shutdown", func(w http.ResponseWriter, r *http.Request) {
		shutdown()
		rd.JSON(w, http.StatusAccepted, map[string]bool{"enabled": p.Enabled()})
	}).Methods(http.MethodPost)

	n := negroni.New(negroni.NewRecovery(), negroni.NewLogger())
	n.UseHandler(router)
	return n
}
