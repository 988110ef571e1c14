// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/relabs-tech/sleep_logger/internal/dispatch"
	"github.com/relabs-tech/sleep_logger/internal/sensors"
	"github.com/relabs-tech/sleep_logger/internal/session"
)

// RunLister lists recorded runs, oldest first.
type RunLister interface {
	ListRuns(ctx context.Context) ([]string, error)
}

// RegisterReader dumps the accelerometer registers.
type RegisterReader interface {
	DumpRegisters() (map[byte]byte, error)
}

// WebDeps are the collaborators of the HTTP surface. Everything except
// Control is optional.
type WebDeps struct {
	Control   *session.Controller
	SinkStats func() []dispatch.SinkStats
	Feed      http.Handler
	Runs      RunLister
	Registers RegisterReader
	PlotDir   string
	Logger    *zap.Logger
}

// StatusResponse is served on /api/status.
type StatusResponse struct {
	Running bool                 `json:"running"`
	Session session.Status       `json:"session"`
	Sinks   []dispatch.SinkStats `json:"sinks"`
}

type registerValue struct {
	sensors.RegisterInfo
	Value string `json:"value"`
}

// NewWebHandler builds the HTTP routes.
func NewWebHandler(d WebDeps) http.Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	log := d.Logger.Named("web")
	mux := http.NewServeMux()

	writeJSON := func(w http.ResponseWriter, code int, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(v); err != nil {
			log.Warn("json encode error", zap.Error(err))
		}
	}
	postOnly := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				w.Header().Set("Allow", http.MethodPost)
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			h(w, r)
		}
	}

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{
			Running: d.Control.Running(),
			Session: d.Control.Status(),
		}
		if d.SinkStats != nil {
			resp.Sinks = d.SinkStats()
		}
		writeJSON(w, http.StatusOK, resp)
	})

	mux.HandleFunc("/api/start", postOnly(func(w http.ResponseWriter, r *http.Request) {
		st, err := d.Control.Start()
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": st, "session": d.Control.Status()})
	}))

	mux.HandleFunc("/api/stop", postOnly(func(w http.ResponseWriter, r *http.Request) {
		st := d.Control.Stop()
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": st, "session": d.Control.Status()})
	}))

	mux.HandleFunc("/api/runs", func(w http.ResponseWriter, r *http.Request) {
		if d.Runs == nil {
			http.Error(w, "run store disabled", http.StatusNotFound)
			return
		}
		labels, err := d.Runs.ListRuns(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, labels)
	})

	mux.HandleFunc("/api/registers", func(w http.ResponseWriter, r *http.Request) {
		if d.Registers == nil {
			http.Error(w, "no register access for this sensor", http.StatusNotFound)
			return
		}
		values, err := d.Registers.DumpRegisters()
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
			return
		}
		out := make([]registerValue, 0, len(values))
		for _, info := range sensors.MMA8452QRegisterMap() {
			out = append(out, registerValue{RegisterInfo: info, Value: fmt.Sprintf("0x%02X", values[info.Address])})
		}
		writeJSON(w, http.StatusOK, out)
	})

	if d.Feed != nil {
		mux.Handle("/ws", d.Feed)
	}
	if d.PlotDir != "" {
		mux.Handle("/plots/", http.StripPrefix("/plots/", http.FileServer(http.Dir(d.PlotDir))))
	}
	return mux
}
