// Package server exposes the shading engine over HTTP: frames rendered on
// demand, point samples, archived frames and render status.
package server

import "net/http"

// NewMux wires the frame server and, when archive is non-nil, the archive
// handler into one router.
func NewMux(frames *OnDemandFrames, archive *ArchiveHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/frame.png", withCORS(frames.FrameHandler()))
	mux.Handle("/sample", withCORS(frames.SampleHandler()))
	mux.Handle("/status", withCORS(frames.StatusHandler()))
	mux.Handle("/status/stream", withCORS(frames.StatusStreamHandler()))
	if archive != nil {
		mux.Handle("/archive/", withCORS(archive.Handler()))
	}
	return mux
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
