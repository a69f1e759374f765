package transport

import (
	"encoding/json"
	"evpilot/internal"
	"evpilot/ocpp"
	"evpilot/types"
	"evpilot/utility"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

const simHeartbeatInterval = 30 * time.Second

// Simulator is an in-memory stand-in for the fleet controller, used in
// development and tests. It answers CALLs the way a live charger fleet
// would and emits periodic heartbeats, behind the same Transport
// interface as the websocket client.
type Simulator struct {
	logger internal.LogHandler

	mu        sync.Mutex
	handler   Handler
	chargers  map[string]*simCharger
	connected bool
	stop      chan struct{}
	latency   time.Duration
}

type simCharger struct {
	online     bool
	connectors int
	busy       map[int]bool
}

func NewSimulator(logger internal.LogHandler) *Simulator {
	return &Simulator{
		logger:   logger,
		chargers: make(map[string]*simCharger),
		latency:  20 * time.Millisecond,
	}
}

func (s *Simulator) SetHandler(handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// SetLatency overrides the simulated device round trip.
func (s *Simulator) SetLatency(latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = latency
}

func (s *Simulator) RegisterCharger(chargerId string, connectors int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if connectors < 1 {
		connectors = 1
	}
	s.chargers[chargerId] = &simCharger{
		online:     true,
		connectors: connectors,
		busy:       make(map[int]bool),
	}
}

func (s *Simulator) SetOnline(chargerId string, online bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cp, ok := s.chargers[chargerId]; ok {
		cp.online = online
	}
}

func (s *Simulator) Connect() error {
	s.mu.Lock()
	if s.connected {
		s.mu.Unlock()
		return nil
	}
	s.connected = true
	s.stop = make(chan struct{})
	stop := s.stop
	s.mu.Unlock()

	go s.emitHeartbeats()
	go s.heartbeatLoop(stop)
	return nil
}

func (s *Simulator) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return nil
	}
	s.connected = false
	close(s.stop)
	return nil
}

func (s *Simulator) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *Simulator) heartbeatLoop(stop chan struct{}) {
	ticker := time.NewTicker(simHeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.emitHeartbeats()
		case <-stop:
			return
		}
	}
}

// emitHeartbeats delivers a Heartbeat call for every online charger so
// the state store refreshes lastHeartbeat.
func (s *Simulator) emitHeartbeats() {
	s.mu.Lock()
	handler := s.handler
	type beat struct {
		id         string
		connectors int
	}
	var online []beat
	for id, cp := range s.chargers {
		if cp.online {
			online = append(online, beat{id: id, connectors: cp.connectors})
		}
	}
	s.mu.Unlock()
	if handler == nil {
		return
	}
	for _, b := range online {
		call := ocpp.NewCallRequest(utility.NewUUID(), &ocpp.HeartbeatRequest{})
		if _, err := handler.OnCall(b.id, call); err != nil {
			s.logger.Error("simulator heartbeat", err)
		}
		for connectorId := 1; connectorId <= b.connectors; connectorId++ {
			status := ocpp.NewCallRequest(utility.NewUUID(), &ocpp.StatusNotificationRequest{
				ConnectorId: connectorId,
				ErrorCode:   ocpp.NoError,
				Status:      string(types.GunStatusAvailable),
				Timestamp:   types.NewDateTime(time.Now()),
			})
			if _, err := handler.OnCall(b.id, status); err != nil {
				s.logger.Error("simulator status notification", err)
			}
		}
	}
}

func (s *Simulator) Send(chargerId string, data []byte) error {
	s.mu.Lock()
	connected := s.connected
	latency := s.latency
	s.mu.Unlock()
	if !connected {
		return utility.Err("not connected to fleet controller")
	}
	fields, err := utility.ParseJson(data)
	if err != nil {
		return err
	}
	callType, err := ocpp.MessageType(fields)
	if err != nil {
		return err
	}
	if callType != ocpp.CallTypeRequest {
		return nil
	}
	call, err := ocpp.ParseRequest(fields)
	if err != nil {
		return err
	}
	time.AfterFunc(latency, func() {
		s.answer(chargerId, call)
	})
	return nil
}

func (s *Simulator) answer(chargerId string, call *ocpp.CallRequest) {
	s.mu.Lock()
	handler := s.handler
	cp, known := s.chargers[chargerId]
	if !known || !cp.online {
		// an unreachable device never answers, the pending command times out
		s.mu.Unlock()
		s.logger.Warn(fmt.Sprintf("simulator: dropping %s for unreachable charger %s", call.GetFeatureName(), chargerId))
		return
	}
	response := s.confirmation(cp, call)
	connected := s.connected
	s.mu.Unlock()

	if handler == nil || !connected {
		return
	}
	payload, err := json.Marshal(response)
	if err != nil {
		s.logger.Error("simulator response encoding", err)
		return
	}
	handler.OnResult(chargerId, &ocpp.ResultPayload{UniqueId: call.UniqueId, Payload: payload})
}

// confirmation builds the device answer; caller holds the lock.
func (s *Simulator) confirmation(cp *simCharger, call *ocpp.CallRequest) ocpp.Response {
	switch request := call.Payload.(type) {
	case *ocpp.RemoteStartTransactionRequest:
		connectorId := 1
		if request.ConnectorId != nil {
			connectorId = *request.ConnectorId
		}
		if connectorId > cp.connectors || cp.busy[connectorId] {
			return &ocpp.RemoteStartTransactionResponse{Status: types.CommandStatusRejected}
		}
		cp.busy[connectorId] = true
		return &ocpp.RemoteStartTransactionResponse{Status: types.CommandStatusAccepted}
	case *ocpp.RemoteStopTransactionRequest:
		for connectorId := range cp.busy {
			delete(cp.busy, connectorId)
		}
		return &ocpp.RemoteStopTransactionResponse{Status: types.CommandStatusAccepted}
	case *ocpp.ResetRequest:
		cp.busy = make(map[int]bool)
		downtime := 0
		if request.Type == ocpp.ResetTypeHard {
			downtime = 180
		}
		return &ocpp.ResetResponse{Status: types.CommandStatusAccepted, EstimatedDowntime: downtime}
	case *ocpp.UnlockConnectorRequest:
		if request.ConnectorId > cp.connectors {
			return &ocpp.UnlockConnectorResponse{Status: ocpp.UnlockStatusUnlockFailed}
		}
		delete(cp.busy, request.ConnectorId)
		return &ocpp.UnlockConnectorResponse{Status: ocpp.UnlockStatusUnlocked}
	case *ocpp.ClearCacheRequest:
		return &ocpp.ClearCacheResponse{
			Status:         types.CommandStatusAccepted,
			ClearedEntries: rand.Intn(100),
		}
	case *ocpp.UpdateFirmwareRequest:
		return &ocpp.UpdateFirmwareResponse{
			Status:        types.CommandStatusAccepted,
			Version:       "2.1.6",
			EstimatedTime: 600,
		}
	case *ocpp.DataTransferRequest:
		return &ocpp.DataTransferResponse{Status: types.CommandStatusAccepted}
	default:
		return &ocpp.DataTransferResponse{Status: types.CommandStatusNotSupported}
	}
}
