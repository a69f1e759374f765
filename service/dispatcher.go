package service

import (
	"encoding/json"
	"evpilot/metrics/counters"
	"evpilot/models"
	"evpilot/ocpp"
	"evpilot/types"
	"fmt"
	"time"
)

const vendorId = "evpilot"

// ExecuteCommand runs one operator command end to end: validate, encode
// the OCPP call, send it to the fleet controller, wait for the
// correlated response and apply local state transitions. Failures of
// every kind are folded into the result, the method never panics or
// returns an error.
func (c *Controller) ExecuteCommand(request *models.CommandRequest) *models.CommandResult {
	started := time.Now()
	result := c.executeCommand(request)
	counters.CountCommand(request.Command, string(result.Status))
	counters.ObserveCommandDuration(request.Command, time.Since(started).Seconds())
	return result
}

func (c *Controller) executeCommand(request *models.CommandRequest) *models.CommandResult {
	if request.ChargerId == "" {
		return rejected("", "charger id is required")
	}
	if request.Command == "" {
		return rejected("", "command is required")
	}
	snapshot, err := c.store.GetChargerStatus(request.ChargerId)
	if err != nil {
		return rejected("", err.Error())
	}
	if snapshot.Status == types.ChargerStatusOffline {
		return rejected("", fmt.Sprintf("charger %s is not available", request.ChargerId))
	}

	switch request.Command {
	case models.CommandStartCharging:
		return c.startCharging(request)
	case models.CommandStopCharging:
		return c.stopCharging(request)
	case models.CommandResetCharger:
		return c.resetCharger(request, ocpp.ResetTypeSoft)
	case models.CommandRebootCharger:
		return c.resetCharger(request, ocpp.ResetTypeHard)
	case models.CommandUnlockConnector:
		return c.unlockConnector(request)
	case models.CommandClearCache:
		return c.clearCache(request)
	case models.CommandUpdateFirmware:
		return c.updateFirmware(request)
	default:
		return c.genericCommand(request)
	}
}

func rejected(messageId, message string) *models.CommandResult {
	return &models.CommandResult{
		Status:    types.CommandStatusRejected,
		MessageId: messageId,
		Message:   message,
	}
}

// send issues the call and blocks until the pending entry settles.
// The second return value is non-nil when the command failed before a
// payload was received.
func (c *Controller) send(chargerId string, payload ocpp.Request) (string, json.RawMessage, *models.CommandResult) {
	messageId, outcome := c.correlator.Add(chargerId, payload.GetFeatureName(), c.timeout)
	call := ocpp.NewCall(messageId, payload)
	data, err := json.Marshal(call)
	if err != nil {
		c.correlator.Fail(messageId, err)
		<-outcome
		return messageId, nil, rejected(messageId, err.Error())
	}
	c.logger.FeatureEvent(payload.GetFeatureName(), chargerId, fmt.Sprintf("-> %s", messageId))
	if err = c.transport.Send(chargerId, data); err != nil {
		c.correlator.Fail(messageId, err)
		<-outcome
		return messageId, nil, rejected(messageId, err.Error())
	}

	settled := <-outcome
	switch {
	case settled.TimedOut:
		c.logger.Warn(fmt.Sprintf("%s to %s timed out after %s", payload.GetFeatureName(), chargerId, c.timeout))
		return messageId, nil, rejected(messageId, fmt.Sprintf("command timed out after %s", c.timeout))
	case settled.Err != nil:
		return messageId, nil, rejected(messageId, settled.Err.Error())
	}
	return messageId, settled.Payload, nil
}

func (c *Controller) startCharging(request *models.CommandRequest) *models.CommandResult {
	connectorId := request.ConnectorId
	if connectorId < 1 {
		connectorId = 1
	}
	gun, err := c.store.Gun(request.ChargerId, connectorId)
	if err != nil {
		return rejected("", err.Error())
	}
	gun.mu.Lock()
	busy := gun.session != nil
	faulted := gun.status == types.GunStatusFaulted
	gun.mu.Unlock()
	if faulted {
		return rejected("", fmt.Sprintf("connector %d is faulted, reset the charger first", connectorId))
	}
	if busy {
		return rejected("", fmt.Sprintf("connector %d already has an active session", connectorId))
	}

	idTag := stringParameter(request.Parameters, "vehicleId")
	if idTag == "" {
		idTag = "operator"
	}
	messageId, payload, failure := c.send(request.ChargerId, ocpp.NewRemoteStartTransactionRequest(idTag, connectorId))
	if failure != nil {
		return failure
	}
	var response ocpp.RemoteStartTransactionResponse
	if err = json.Unmarshal(payload, &response); err != nil {
		return rejected(messageId, err.Error())
	}
	if response.Status != types.CommandStatusAccepted {
		return &models.CommandResult{
			Status:    response.Status,
			MessageId: messageId,
			Message:   "charger rejected the start request",
		}
	}

	session, err := c.sessions.Start(request.ChargerId, connectorId, request.Parameters)
	if err != nil {
		return rejected(messageId, err.Error())
	}
	return &models.CommandResult{
		Success:   true,
		Status:    types.CommandStatusAccepted,
		MessageId: messageId,
		Message:   fmt.Sprintf("charging started on connector %d", connectorId),
		Data: map[string]interface{}{
			"sessionId":   session.SessionId,
			"connectorId": connectorId,
		},
	}
}

func (c *Controller) stopCharging(request *models.CommandRequest) *models.CommandResult {
	transactionId := ""
	for _, metrics := range c.chargerSessions(request.ChargerId, request.ConnectorId) {
		transactionId = metrics.Session.SessionId
		break
	}

	messageId, payload, failure := c.send(request.ChargerId, ocpp.NewRemoteStopTransactionRequest(transactionId))
	if failure != nil {
		return failure
	}
	var response ocpp.RemoteStopTransactionResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return rejected(messageId, err.Error())
	}
	if response.Status != types.CommandStatusAccepted {
		return &models.CommandResult{
			Status:    response.Status,
			MessageId: messageId,
			Message:   "charger rejected the stop request",
		}
	}

	finalEnergy, stopped := c.sessions.Stop(request.ChargerId, request.ConnectorId)
	message := fmt.Sprintf("charging stopped, delivered %.2f kWh", finalEnergy)
	if !stopped {
		message = "no active session on charger"
	}
	if stopped {
		counters.CountDeliveredEnergy(c.stationOf(request.ChargerId), request.ChargerId, finalEnergy)
	}
	return &models.CommandResult{
		Success:   true,
		Status:    types.CommandStatusAccepted,
		MessageId: messageId,
		Message:   message,
		Data: map[string]interface{}{
			"finalEnergy": finalEnergy,
		},
	}
}

func (c *Controller) chargerSessions(chargerId string, connectorId int) []models.GunMetrics {
	all, err := c.store.ChargerGunMetrics(chargerId)
	if err != nil {
		return nil
	}
	active := make([]models.GunMetrics, 0, 1)
	for _, metrics := range all {
		if metrics.Session == nil {
			continue
		}
		if connectorId > 0 && metrics.ConnectorId != connectorId {
			continue
		}
		active = append(active, metrics)
	}
	return active
}

func (c *Controller) stationOf(chargerId string) string {
	all, err := c.store.ChargerGunMetrics(chargerId)
	if err != nil || len(all) == 0 {
		return ""
	}
	return all[0].StationId
}

func (c *Controller) resetCharger(request *models.CommandRequest, resetType ocpp.ResetType) *models.CommandResult {
	messageId, payload, failure := c.send(request.ChargerId, ocpp.NewResetRequest(resetType))
	if failure != nil {
		return failure
	}
	var response ocpp.ResetResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return rejected(messageId, err.Error())
	}
	if response.Status != types.CommandStatusAccepted {
		return &models.CommandResult{
			Status:    response.Status,
			MessageId: messageId,
			Message:   "charger rejected the reset request",
		}
	}

	// reset ends whatever was running and clears fault latches
	c.sessions.Stop(request.ChargerId, 0)
	c.sessions.ClearFaults(request.ChargerId)
	c.store.SetChargerStatus(request.ChargerId, types.ChargerStatusAvailable)

	data := map[string]interface{}{"resetType": string(resetType)}
	message := "charger reset initiated"
	if resetType == ocpp.ResetTypeHard {
		data["estimatedDowntime"] = response.EstimatedDowntime
		message = "charger reboot initiated"
	}
	return &models.CommandResult{
		Success:   true,
		Status:    types.CommandStatusAccepted,
		MessageId: messageId,
		Message:   message,
		Data:      data,
	}
}

func (c *Controller) unlockConnector(request *models.CommandRequest) *models.CommandResult {
	connectorId := request.ConnectorId
	if connectorId < 1 {
		connectorId = 1
	}
	messageId, payload, failure := c.send(request.ChargerId, ocpp.NewUnlockConnectorRequest(connectorId))
	if failure != nil {
		return failure
	}
	var response ocpp.UnlockConnectorResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return rejected(messageId, err.Error())
	}
	if response.Status != ocpp.UnlockStatusUnlocked {
		return &models.CommandResult{
			Status:    types.CommandStatusRejected,
			MessageId: messageId,
			Message:   fmt.Sprintf("unlock failed: %s", response.Status),
		}
	}
	c.sessions.Stop(request.ChargerId, connectorId)
	return &models.CommandResult{
		Success:   true,
		Status:    types.CommandStatusAccepted,
		MessageId: messageId,
		Message:   fmt.Sprintf("connector %d unlocked", connectorId),
		Data: map[string]interface{}{
			"connectorId": connectorId,
		},
	}
}

func (c *Controller) clearCache(request *models.CommandRequest) *models.CommandResult {
	messageId, payload, failure := c.send(request.ChargerId, ocpp.NewClearCacheRequest())
	if failure != nil {
		return failure
	}
	var response ocpp.ClearCacheResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return rejected(messageId, err.Error())
	}
	if response.Status != types.CommandStatusAccepted {
		return &models.CommandResult{
			Status:    response.Status,
			MessageId: messageId,
			Message:   "charger rejected the clear cache request",
		}
	}
	return &models.CommandResult{
		Success:   true,
		Status:    types.CommandStatusAccepted,
		MessageId: messageId,
		Message:   "authorization cache cleared",
		Data: map[string]interface{}{
			"clearedEntries": response.ClearedEntries,
		},
	}
}

func (c *Controller) updateFirmware(request *models.CommandRequest) *models.CommandResult {
	location := stringParameter(request.Parameters, "firmwareUrl")
	messageId, payload, failure := c.send(request.ChargerId, ocpp.NewUpdateFirmwareRequest(location))
	if failure != nil {
		return failure
	}
	var response ocpp.UpdateFirmwareResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return rejected(messageId, err.Error())
	}
	if response.Status != types.CommandStatusAccepted {
		return &models.CommandResult{
			Status:    response.Status,
			MessageId: messageId,
			Message:   "charger rejected the firmware update",
		}
	}
	return &models.CommandResult{
		Success:   true,
		Status:    types.CommandStatusAccepted,
		MessageId: messageId,
		Message:   "firmware update scheduled",
		Data: map[string]interface{}{
			"version":       response.Version,
			"estimatedTime": response.EstimatedTime,
		},
	}
}

// genericCommand forwards an unrecognized command as a data transfer so
// new fleet-side commands keep working without a dispatcher change.
func (c *Controller) genericCommand(request *models.CommandRequest) *models.CommandResult {
	c.logger.Warn(fmt.Sprintf("unrecognized command %q for %s, sending as data transfer", request.Command, request.ChargerId))
	messageId, payload, failure := c.send(request.ChargerId,
		ocpp.NewDataTransferRequest(vendorId, request.Command, request.Parameters))
	if failure != nil {
		return failure
	}
	var response ocpp.DataTransferResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return rejected(messageId, err.Error())
	}
	if response.Status != types.CommandStatusAccepted {
		return &models.CommandResult{
			Status:    response.Status,
			MessageId: messageId,
			Message:   fmt.Sprintf("charger rejected command %q", request.Command),
		}
	}
	return &models.CommandResult{
		Success:   true,
		Status:    types.CommandStatusAccepted,
		MessageId: messageId,
		Message:   fmt.Sprintf("command %q executed", request.Command),
		Data: map[string]interface{}{
			"generic":  true,
			"response": response.Data,
		},
	}
}
