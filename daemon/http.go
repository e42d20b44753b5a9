//
// Copyright 2025 The DevPulse Authors. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package daemon

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	h "github.com/devpulse/devpulse/http"
	"github.com/devpulse/devpulse/scheduler"
)

type wwwServer struct {
	sched      *scheduler.Scheduler
	listenSpec string
	listener   net.Listener
	hub        *h.Hub
}

func (w *wwwServer) Start() error {
	if w.listenSpec == "" {
		log.Printf("Not starting HTTP server because http-listen-spec is blank.")
		return nil
	}

	l, err := net.Listen("tcp", processListenSpec(w.listenSpec))
	if err != nil {
		return fmt.Errorf("Error starting HTTP server: %v", err)
	}
	w.listener = l

	w.hub = h.NewHub(w.sched)
	w.sched.AddConsumer(w.hub)

	fmt.Printf("HTTP server listening on %s\n", processListenSpec(w.listenSpec))

	go httpServer(w.listener, w.sched, w.hub)

	return nil
}

func (w *wwwServer) Stop() {
	if w.listener != nil {
		log.Printf("Closing HTTP listener %s", w.listenSpec)
		w.listener.Close()
	}
	if w.hub != nil {
		w.sched.RemoveConsumer(w.hub)
	}
}

func httpServer(l net.Listener, sched *scheduler.Scheduler, hub *h.Hub) {

	mux := http.NewServeMux()
	mux.HandleFunc("/ping", h.PingHandler())
	mux.HandleFunc("/entities", h.EntitiesHandler(sched))
	mux.HandleFunc("/stats", h.StatsHandler(sched))
	mux.HandleFunc("/series", h.SeriesHandler(sched))
	mux.HandleFunc("/ws", hub.ServeWS())
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 16,
		Handler:        mux}
	server.Serve(l)
}
