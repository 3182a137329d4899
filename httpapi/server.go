/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package httpapi exposes subscription health, the latest snapshots and
// Prometheus metrics over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"fix-md-subscriber/metrics"
	"fix-md-subscriber/model"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// StatusSource reports the subscription status.
type StatusSource interface {
	Status() model.Status
}

// SnapshotSource returns the last snapshot received per symbol.
type SnapshotSource interface {
	Latest(symbol string) (*model.MarketDataSnapshot, bool)
	Symbols() []string
}

type Server struct {
	log       *zap.Logger
	status    StatusSource
	snapshots SnapshotSource
	metrics   *metrics.Collector
	router    *gin.Engine

	mu  sync.Mutex
	srv *http.Server
}

func NewServer(log *zap.Logger, status StatusSource, snapshots SnapshotSource, m *metrics.Collector) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		log:       log.Named("http"),
		status:    status,
		snapshots: snapshots,
		metrics:   m,
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/health", s.healthCheck)
	router.GET("/ready", s.readyCheck)
	router.GET("/symbols", s.listSymbols)
	router.GET("/snapshots/*symbol", s.latestSnapshot)
	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	return router
}

// Start serves on addr until Shutdown. It returns once the listener fails or
// is closed.
func (s *Server) Start(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()

	s.log.Info("http server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

type statusResponse struct {
	Status    string   `json:"status"`
	State     string   `json:"state"`
	RequestID string   `json:"req_id,omitempty"`
	Symbols   []string `json:"symbols"`
	LoggedOn  bool     `json:"logged_on"`
	FirstData bool     `json:"first_data"`
	Armed     bool     `json:"armed"`
	LastError string   `json:"last_error,omitempty"`
}

func newStatusResponse(st model.Status, status string) statusResponse {
	resp := statusResponse{
		Status:    status,
		State:     st.State.String(),
		RequestID: st.RequestID,
		Symbols:   st.Symbols,
		LoggedOn:  st.LoggedOn,
		FirstData: st.FirstData,
		Armed:     st.Armed,
	}
	if resp.Symbols == nil {
		resp.Symbols = []string{}
	}
	if st.LastError != nil {
		resp.LastError = st.LastError.Error()
	}
	return resp
}

// healthCheck reports liveness together with the subscription status.
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, newStatusResponse(s.status.Status(), "ok"))
}

// readyCheck succeeds only while logged on with an Active subscription.
func (s *Server) readyCheck(c *gin.Context) {
	st := s.status.Status()
	if st.LoggedOn && st.State == model.StateActive {
		c.JSON(http.StatusOK, newStatusResponse(st, "ready"))
		return
	}
	c.JSON(http.StatusServiceUnavailable, newStatusResponse(st, "not_ready"))
}

func (s *Server) listSymbols(c *gin.Context) {
	symbols := s.snapshots.Symbols()
	if symbols == nil {
		symbols = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"symbols": symbols})
}

type entryResponse struct {
	Type     string              `json:"type"`
	Price    decimal.NullDecimal `json:"price"`
	Size     decimal.NullDecimal `json:"size"`
	Time     string              `json:"time,omitempty"`
	Position string              `json:"position,omitempty"`
}

type snapshotResponse struct {
	Symbol     string          `json:"symbol"`
	RequestID  string          `json:"req_id,omitempty"`
	SeqNum     int             `json:"seq_num"`
	ReceivedAt time.Time       `json:"received_at"`
	Entries    []entryResponse `json:"entries"`
}

// latestSnapshot serves /snapshots/<symbol>. Symbols may contain slashes.
func (s *Server) latestSnapshot(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimPrefix(c.Param("symbol"), "/"))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol required"})
		return
	}

	snap, ok := s.snapshots.Latest(symbol)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no snapshot for symbol", "symbol": symbol})
		return
	}

	resp := snapshotResponse{
		Symbol:     snap.Symbol,
		RequestID:  snap.RequestID.String,
		SeqNum:     snap.SeqNum,
		ReceivedAt: snap.ReceivedAt,
		Entries:    make([]entryResponse, 0, len(snap.Entries)),
	}
	for _, e := range snap.Entries {
		resp.Entries = append(resp.Entries, entryResponse{
			Type:     e.Type.String(),
			Price:    e.Price,
			Size:     e.Size,
			Time:     e.Time,
			Position: e.Position,
		})
	}
	c.JSON(http.StatusOK, resp)
}
