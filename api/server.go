package api

import (
	"encoding/json"
	"evpilot/internal"
	"evpilot/internal/config"
	"evpilot/models"
	"evpilot/service"
	"evpilot/utility"
	"fmt"
	"github.com/julienschmidt/httprouter"
	"net"
	"net/http"
)

const (
	commandEndpoint     = "/api/v1/chargers/:id/command"
	chargerEndpoint     = "/api/v1/chargers/:id"
	chargersEndpoint    = "/api/v1/chargers"
	gunMetricsEndpoint  = "/api/v1/guns/metrics"
	chargerGunsEndpoint = "/api/v1/chargers/:id/guns/metrics"
	alertAckEndpoint    = "/api/v1/guns/:id/alerts/:alertId/ack"
	logEndpoint         = "/api/v1/log"
)

// Server exposes the operator REST surface over the command dispatcher
// and the state store.
type Server struct {
	conf       *config.Config
	httpServer *http.Server
	controller *service.Controller
	store      *service.Store
	database   internal.Database
	logger     internal.LogHandler
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func NewServer(conf *config.Config) *Server {
	server := Server{
		conf: conf,
	}
	router := httprouter.New()
	server.Register(router)
	server.httpServer = &http.Server{
		Handler: router,
	}
	return &server
}

func (s *Server) SetLogger(logger internal.LogHandler) {
	s.logger = logger
}

func (s *Server) SetController(controller *service.Controller) {
	s.controller = controller
}

func (s *Server) SetStore(store *service.Store) {
	s.store = store
}

func (s *Server) SetDatabase(database internal.Database) {
	s.database = database
}

func (s *Server) Register(router *httprouter.Router) {
	router.POST(commandEndpoint, s.handleCommand)
	router.GET(chargersEndpoint, s.handleChargers)
	router.GET(chargerEndpoint, s.handleCharger)
	router.GET(gunMetricsEndpoint, s.handleGunMetrics)
	router.GET(chargerGunsEndpoint, s.handleChargerGuns)
	router.POST(alertAckEndpoint, s.handleAlertAck)
	router.GET(logEndpoint, s.handleLog)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	var request models.CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	request.ChargerId = params.ByName("id")
	result := s.controller.ExecuteCommand(&request)
	s.writeJson(w, http.StatusOK, envelope{Success: result.Success, Data: result})
}

func (s *Server) handleChargers(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	snapshots := make([]interface{}, 0)
	for _, chargerId := range s.store.ChargerIds() {
		snapshot, err := s.store.GetChargerStatus(chargerId)
		if err != nil {
			continue
		}
		snapshots = append(snapshots, snapshot)
	}
	s.writeJson(w, http.StatusOK, envelope{Success: true, Data: snapshots})
}

func (s *Server) handleCharger(w http.ResponseWriter, _ *http.Request, params httprouter.Params) {
	snapshot, err := s.store.GetChargerStatus(params.ByName("id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJson(w, http.StatusOK, envelope{Success: true, Data: snapshot})
}

func (s *Server) handleGunMetrics(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	s.writeJson(w, http.StatusOK, envelope{Success: true, Data: s.store.AllGunMetrics()})
}

func (s *Server) handleChargerGuns(w http.ResponseWriter, _ *http.Request, params httprouter.Params) {
	metrics, err := s.store.ChargerGunMetrics(params.ByName("id"))
	if err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJson(w, http.StatusOK, envelope{Success: true, Data: metrics})
}

func (s *Server) handleAlertAck(w http.ResponseWriter, _ *http.Request, params httprouter.Params) {
	gunId := params.ByName("id")
	alertId := params.ByName("alertId")
	if err := s.store.AcknowledgeAlert(gunId, alertId); err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeJson(w, http.StatusOK, envelope{Success: true, Data: map[string]string{
		"gunId":   gunId,
		"alertId": alertId,
	}})
}

func (s *Server) handleLog(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	if s.database == nil {
		s.writeError(w, http.StatusServiceUnavailable, "log archive is not configured")
		return
	}
	entries, err := s.database.ReadLog()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJson(w, http.StatusOK, envelope{Success: true, Data: entries})
}

func (s *Server) writeJson(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encoding api response", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJson(w, status, envelope{Success: false, Error: message})
}

func (s *Server) Start() error {
	if s.conf == nil {
		return utility.Err("configuration not loaded")
	}
	serverAddress := fmt.Sprintf("%s:%s", s.conf.Api.BindIP, s.conf.Api.Port)
	s.logger.Debug(fmt.Sprintf("starting api server on %s", serverAddress))
	listener, err := net.Listen("tcp", serverAddress)
	if err != nil {
		return err
	}
	if s.conf.Api.TLS {
		s.logger.Debug("starting https TLS server")
		err = s.httpServer.ServeTLS(listener, s.conf.Api.CertFile, s.conf.Api.KeyFile)
	} else {
		s.logger.Debug("starting http server")
		err = s.httpServer.Serve(listener)
	}
	return err
}
