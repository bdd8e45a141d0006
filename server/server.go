package server

import (
	"crypto/tls"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/urfave/negroni"
	"golang.org/x/crypto/acme/autocert"

	"github.com/serisow/datalens/config"
	"github.com/serisow/datalens/handlers"
)

func SetupRoutes(h *handlers.Handler) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/documents", h.UploadDocument).Methods("POST")
	r.HandleFunc("/sessions", h.CreateSession).Methods("POST")
	r.HandleFunc("/sessions/{id}", h.GetSession).Methods("GET")
	r.HandleFunc("/sessions/{id}", h.DeleteSession).Methods("DELETE")
	r.HandleFunc("/sessions/{id}/table", h.GetTable).Methods("GET")
	r.HandleFunc("/sessions/{id}/reset", h.ResetSession).Methods("POST")
	r.HandleFunc("/sessions/{id}/quality", h.GetQuality).Methods("GET")
	r.HandleFunc("/sessions/{id}/anomalies", h.GetAnomalies).Methods("GET")
	r.HandleFunc("/sessions/{id}/sensitive", h.GetSensitive).Methods("GET")
	r.HandleFunc("/sessions/{id}/mask", h.MaskColumn).Methods("POST")
	r.HandleFunc("/sessions/{id}/anonymize", h.Anonymize).Methods("POST")
	r.HandleFunc("/sessions/{id}/transform", h.Transform).Methods("POST")
	r.HandleFunc("/sessions/{id}/chat", h.Chat).Methods("POST")
	r.HandleFunc("/sessions/{id}/export", h.Export).Methods("GET")
	r.HandleFunc("/audit", h.GetAudit).Methods("GET")

	return r
}

// ServeProduction terminates TLS with autocert-managed certificates and
// redirects plain HTTP to HTTPS.
func ServeProduction(n *negroni.Negroni, cfg config.Config) {
	autocertManager := autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(cfg.Domains...),
		Cache:      autocert.DirCache(cfg.CertCacheDir),
	}

	// Port 80 serves ACME "http-01" challenges and redirects everything else
	// to HTTPS.
	go func() {
		srv := &http.Server{
			Addr:         ":" + cfg.HTTPPort,
			Handler:      autocertManager.HTTPHandler(nil),
			IdleTimeout:  time.Minute,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		}

		err := srv.ListenAndServe()
		log.Fatal(err)
	}()

	tlsConfig := &tls.Config{
		GetCertificate:           autocertManager.GetCertificate,
		PreferServerCipherSuites: true,
		CurvePreferences:         []tls.CurveID{tls.X25519, tls.CurveP256},
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPSPort,
		Handler:      n,
		TLSConfig:    tlsConfig,
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	err := srv.ListenAndServeTLS("", "") // Key and cert provided automatically by autocert.
	log.Fatal(err)
}

// ServeDevelopment starts the plain HTTP server used outside production.
func ServeDevelopment(s *http.Server) {
	log.Fatal(s.ListenAndServe())
}
