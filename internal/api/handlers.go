package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"logguard/internal/client"
	"logguard/internal/pipeline"
	"logguard/internal/rules"
	"logguard/internal/storage"
	"logguard/internal/utils"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const maxIngestBody = 10 << 20

type Handlers struct {
	processor *pipeline.Processor
	store     storage.Reader
	engine    *rules.Engine
	config    *utils.LogGuardConfig
	hub       *AlertHub
	logger    *logrus.Logger
	upgrader  websocket.Upgrader
}

func NewHandlers(processor *pipeline.Processor, store storage.Reader, engine *rules.Engine, config *utils.LogGuardConfig, hub *AlertHub, logger *logrus.Logger) *Handlers {
	return &Handlers{
		processor: processor,
		store:     store,
		engine:    engine,
		config:    config,
		hub:       hub,
		logger:    logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Allow all origins for development
				logger.Debugf("WebSocket origin check: %s", r.Header.Get("Origin"))
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Ingest processes one stream-trigger batch synchronously.
func (h *Handlers) Ingest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxIngestBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
		return
	}

	records, err := pipeline.DecodeEnvelope(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The batch runs to completion even if the caller goes away.
	result := h.processor.Process(context.WithoutCancel(r.Context()), records)

	writeJSON(w, http.StatusOK, client.IngestResponse{
		StatusCode: http.StatusOK,
		Body:       result,
	})
}

func (h *Handlers) GetAnomalies(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, _ := strconv.Atoi(query.Get("limit"))

	filter := storage.AnomalyFilter{
		Limit:    limit,
		Severity: strings.ToUpper(query.Get("severity")),
		Type:     strings.ToUpper(query.Get("type")),
		Source:   query.Get("source"),
	}

	anomalies, err := h.store.List(r.Context(), filter)
	if err != nil {
		h.logger.Errorf("Failed to list anomalies: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to list anomalies")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": anomalies,
		"total": len(anomalies),
	})
}

func (h *Handlers) GetAnomaly(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	anomaly, err := h.store.Get(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Anomaly not found")
		return
	}
	if err != nil {
		h.logger.Errorf("Failed to get anomaly %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "Failed to get anomaly")
		return
	}

	writeJSON(w, http.StatusOK, anomaly)
}

func (h *Handlers) GetAnomalyStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.logger.Errorf("Failed to compute anomaly stats: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to compute stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// GetRules lists rules in evaluation order along with the configured thresholds.
func (h *Handlers) GetRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules":      h.engine.Describe(),
		"thresholds": h.config.Detection,
	})
}

func (h *Handlers) StreamAlerts(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	query := r.URL.Query()
	sub := h.hub.Subscribe(AlertFilter{
		Severity: strings.ToUpper(query.Get("severity")),
		Type:     strings.ToUpper(query.Get("type")),
		Source:   query.Get("source"),
	})
	defer h.hub.Unsubscribe(sub)

	h.logger.Infof("WebSocket alert subscriber %s connected from %s", sub.ID, r.RemoteAddr)

	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(map[string]string{"type": "connected", "message": "WebSocket connection established"}); err != nil {
		h.logger.Errorf("Failed to send initial message: %v", err)
		return
	}

	done := make(chan struct{})
	once := &sync.Once{}
	closeDone := func() {
		once.Do(func() {
			close(done)
		})
	}

	// Read messages in background to detect connection close
	go func() {
		defer closeDone()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Send ping to keep connection alive
	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case msg, ok := <-sub.Channel:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Errorf("WebSocket write error: %v", err)
				return
			}
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				h.logger.Debugf("Ping failed: %v", err)
				return
			}
		case <-done:
			h.logger.Debugf("WebSocket alert subscriber %s disconnected", sub.ID)
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
