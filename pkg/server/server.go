// Copyright 2025 walteh LLC
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

// Package server hosts the editor shell, its JSON API and the overlay
// websocket on top of a session.Controller.
package server

import (
	_ "embed"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/walteh/copyedit/pkg/overlay"
	"github.com/walteh/copyedit/pkg/session"
	"github.com/walteh/copyedit/pkg/status"
)

//go:embed static/index.html
var shellPage []byte

// 🌐 Server is the HTTP surface of the editor
type Server struct {
	router chi.Router
	ctrl   *session.Controller
	hub    *hub
	log    zerolog.Logger
}

// 🏭 NewServer wires the routes and subscribes the overlay channel to the
// controller's status, command and ledger notifications
func NewServer(ctrl *session.Controller, log zerolog.Logger) *Server {
	s := &Server{
		ctrl: ctrl,
		hub:  newHub(log),
		log:  log,
	}

	ctrl.OnStatus(func(st status.Status) {
		s.hub.broadcast(outbound{Type: "status", Status: &st})
	})
	ctrl.OnCommands(func(generation uint64, cmds []overlay.Command) {
		s.hub.broadcast(outbound{Type: "commands", Generation: generation, Commands: cmds})
	})
	ctrl.Ledger().OnChange(func(int) {
		v := s.changes()
		s.hub.broadcast(outbound{Type: "changes", Changes: &v})
	})

	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/", s.handleShell)
	r.Get("/assets/overlay.js", s.handleAgent)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(SameOrigin)
		r.Use(middleware.AllowContentType("application/json", "multipart/form-data"))

		r.Get("/connect", s.handleConnection)
		r.Post("/connect", s.handleConnect)
		r.Delete("/connect", s.handleDisconnect)
		r.Post("/preview", s.handlePreview)
		r.Get("/overlay", s.handleOverlay)

		r.Get("/changes", s.handleListChanges)
		r.Post("/changes", s.handleRegisterChange)
		r.Delete("/changes", s.handleClearChanges)

		r.Post("/draft/save", s.handleSaveDraft)
		r.Post("/draft/load", s.handleLoadDraft)
		r.Delete("/draft", s.handleDiscardDraft)

		r.Post("/push", s.handlePush)

		r.Route("/records", func(r chi.Router) {
			r.Get("/consultations", s.withRecords(s.listConsultations))
			r.Post("/consultations/{id}/reject", s.withRecords(s.rejectConsultation))
			r.Delete("/consultations/{id}", s.withRecords(s.deleteConsultation))
			r.Get("/team", s.withRecords(s.listTeam))
			r.Post("/team", s.withRecords(s.saveTeamMember))
			r.Delete("/team/{id}", s.withRecords(s.deleteTeamMember))
			r.Get("/news", s.withRecords(s.listNews))
			r.Put("/news/{slot}", s.withRecords(s.saveNewsSlot))
			r.Delete("/news/{slot}", s.withRecords(s.clearNewsSlot))
			r.Get("/services", s.withRecords(s.listServices))
			r.Put("/services/{key}/{slot}", s.withRecords(s.saveServiceSlot))
			r.Delete("/services/{key}/{slot}", s.withRecords(s.clearServiceSlot))
		})
	})

	s.router = r
}

func (s *Server) handleShell(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(shellPage)
}

func (s *Server) handleAgent(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Write(overlay.AgentScript)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, http.StatusOK, status.Good("OK"), nil)
}
