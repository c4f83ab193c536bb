package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"odds-engine/config"
	"odds-engine/logger"
	"odds-engine/services"
)

type Server struct {
	config     *config.Config
	engine     *services.RecalcEngine
	quotes     *services.SQLQuoteStore
	volumes    *services.SQLVolumeAggregator
	ledger     *services.SQLChangeLedger
	policies   *services.SQLPolicyStore
	events     *services.SQLEventStore
	advisor    *services.TrendAdvisor
	intake     *services.WagerIntake
	wsHub      *Hub
	httpServer *http.Server
	upgrader   websocket.Upgrader
}

// Deps 服务器依赖
type Deps struct {
	Engine   *services.RecalcEngine
	Quotes   *services.SQLQuoteStore
	Volumes  *services.SQLVolumeAggregator
	Ledger   *services.SQLChangeLedger
	Policies *services.SQLPolicyStore
	Events   *services.SQLEventStore
	Advisor  *services.TrendAdvisor
	Intake   *services.WagerIntake
}

func NewServer(cfg *config.Config, deps Deps, hub *Hub) *Server {
	return &Server{
		config:   cfg,
		engine:   deps.Engine,
		quotes:   deps.Quotes,
		volumes:  deps.Volumes,
		ledger:   deps.Ledger,
		policies: deps.Policies,
		events:   deps.Events,
		advisor:  deps.Advisor,
		intake:   deps.Intake,
		wsHub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有来源(生产环境需要限制)
			},
		},
	}
}

func (s *Server) Start() error {
	router := mux.NewRouter()

	// API路由
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// 赛事
	api.HandleFunc("/events", s.handleListEvents).Methods("GET")
	api.HandleFunc("/events", s.handleCreateEvent).Methods("POST")
	api.HandleFunc("/events/{event_id}/status", s.handleSetEventStatus).Methods("PUT")

	// 赔率
	api.HandleFunc("/quotes/{event_id}", s.handleGetQuotes).Methods("GET")
	api.HandleFunc("/quotes/{event_id}/close", s.handleCloseQuotes).Methods("POST")
	api.HandleFunc("/quotes/{event_id}/{outcome}", s.handleGetQuote).Methods("GET")
	api.HandleFunc("/quotes/{event_id}/{outcome}/history", s.handleGetHistory).Methods("GET")
	api.HandleFunc("/quotes/{event_id}/{outcome}/trend", s.handleGetTrend).Methods("GET")
	api.HandleFunc("/quotes/{event_id}/{outcome}/adjust", s.handleManualAdjust).Methods("POST")
	api.HandleFunc("/quotes/{event_id}/{outcome}/suspend", s.handleSuspendQuote).Methods("POST")
	api.HandleFunc("/quotes/{event_id}/{outcome}/reactivate", s.handleReactivateQuote).Methods("POST")
	api.HandleFunc("/recalculate/{event_id}/{outcome}", s.handleRecalculate).Methods("POST")

	// 投注登记（与 AMQP 队列并行的 HTTP 入口）
	api.HandleFunc("/wagers", s.handleRegisterWager).Methods("POST")

	// 投注量
	api.HandleFunc("/volumes/{event_id}", s.handleGetVolumes).Methods("GET")

	// 策略管理
	api.HandleFunc("/policies", s.handleListPolicies).Methods("GET")
	api.HandleFunc("/policies/{id}", s.handleUpdatePolicy).Methods("PUT")
	api.HandleFunc("/policies/{id}/activate", s.handleActivatePolicy).Methods("POST")

	// WebSocket路由
	router.HandleFunc("/ws", s.handleWebSocket)

	// CORS配置
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	handler := c.Handler(router)

	s.httpServer = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		logger.Errorf("Server shutdown error: %v", err)
	}
}

// handleHealth 健康检查
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
