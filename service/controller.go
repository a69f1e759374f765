package service

import (
	"evpilot/internal"
	"evpilot/models"
	"evpilot/ocpp"
	"evpilot/transport"
	"evpilot/types"
	"evpilot/utility"
	"fmt"
	"time"
)

const defaultCommandTimeout = 10 * time.Second

// Controller owns the fleet connection: it dispatches operator commands
// and handles inbound device traffic. It is the transport handler, so
// responses, errors and device-originated calls all land here.
type Controller struct {
	transport  transport.Transport
	correlator *Correlator
	store      *Store
	sessions   *SessionManager
	logger     internal.LogHandler
	events     internal.EventHandler
	timeout    time.Duration
}

func NewController(fleet transport.Transport, store *Store, sessions *SessionManager, logger internal.LogHandler) *Controller {
	return &Controller{
		transport:  fleet,
		correlator: NewCorrelator(),
		store:      store,
		sessions:   sessions,
		logger:     logger,
		timeout:    defaultCommandTimeout,
	}
}

func (c *Controller) SetEventHandler(events internal.EventHandler) {
	c.events = events
}

func (c *Controller) SetCommandTimeout(timeout time.Duration) {
	if timeout > 0 {
		c.timeout = timeout
	}
}

func (c *Controller) Start() error {
	c.transport.SetHandler(c)
	if err := c.transport.Connect(); err != nil {
		return err
	}
	c.logger.Debug("connected to fleet controller")
	return nil
}

func (c *Controller) Stop() {
	c.correlator.FailAll("controller shutting down")
	if err := c.transport.Disconnect(); err != nil {
		c.logger.Error("fleet disconnect", err)
	}
}

func (c *Controller) OnResult(chargerId string, result *ocpp.ResultPayload) {
	c.correlator.Resolve(result.UniqueId, result.Payload)
}

func (c *Controller) OnCallError(chargerId string, callError *ocpp.CallError) {
	c.logger.Warn(fmt.Sprintf("call error from %s: [%s] %s", chargerId, callError.ErrorCode, callError.ErrorDescription))
	c.correlator.Fail(callError.UniqueId, utility.Err(fmt.Sprintf("%s: %s", callError.ErrorCode, callError.ErrorDescription)))
}

// OnCall handles device-originated requests. Only Heartbeat and
// StatusNotification are expected from the fleet side.
func (c *Controller) OnCall(chargerId string, call *ocpp.CallRequest) (ocpp.Response, error) {
	switch request := call.Payload.(type) {
	case *ocpp.HeartbeatRequest:
		c.store.Heartbeat(chargerId)
		return ocpp.NewHeartbeatResponse(types.NewDateTime(time.Now())), nil
	case *ocpp.StatusNotificationRequest:
		c.handleStatusNotification(chargerId, request)
		return ocpp.NewStatusNotificationResponse(), nil
	default:
		return nil, utility.Err(fmt.Sprintf("unexpected inbound action from %s: %s", chargerId, call.GetFeatureName()))
	}
}

func (c *Controller) handleStatusNotification(chargerId string, request *ocpp.StatusNotificationRequest) {
	status := types.GunStatus(request.Status)
	if status == types.GunStatusFaulted || request.ErrorCode != ocpp.NoError {
		info := request.Info
		if info == "" {
			info = string(request.ErrorCode)
		}
		c.sessions.Fault(models.GunId(chargerId, request.ConnectorId), fmt.Sprintf("device reported fault: %s", info))
		c.store.SetChargerStatus(chargerId, types.ChargerStatusFaulted)
	} else {
		c.store.UpdateConnectorStatus(chargerId, request.ConnectorId, status)
	}
	c.logger.FeatureEvent(ocpp.StatusNotificationFeatureName, chargerId, fmt.Sprintf("connector %d -> %s", request.ConnectorId, request.Status))
	if c.events != nil {
		c.events.OnStatusNotification(&internal.EventMessage{
			ChargerId:   chargerId,
			ConnectorId: request.ConnectorId,
			Time:        time.Now(),
			Status:      request.Status,
			Info:        request.Info,
		})
	}
}

func (c *Controller) OnDisconnect(err error) {
	if err != nil {
		c.logger.Error("fleet connection lost", err)
	}
	c.correlator.FailAll("connection to fleet controller lost")
}
