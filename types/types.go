package types

const SubProtocol16 = "ocpp1.6"

// ChargerStatus is the overall state of a charge point.
type ChargerStatus string

const (
	ChargerStatusAvailable   ChargerStatus = "Available"
	ChargerStatusOccupied    ChargerStatus = "Occupied"
	ChargerStatusFaulted     ChargerStatus = "Faulted"
	ChargerStatusOffline     ChargerStatus = "Offline"
	ChargerStatusMaintenance ChargerStatus = "Maintenance"
)

func GetChargerStatus(s string) ChargerStatus {
	switch s {
	case string(ChargerStatusOccupied):
		return ChargerStatusOccupied
	case string(ChargerStatusFaulted):
		return ChargerStatusFaulted
	case string(ChargerStatusOffline):
		return ChargerStatusOffline
	case string(ChargerStatusMaintenance):
		return ChargerStatusMaintenance
	default:
		return ChargerStatusAvailable
	}
}

// GunStatus is the state of a single connector.
type GunStatus string

const (
	GunStatusAvailable GunStatus = "Available"
	GunStatusCharging  GunStatus = "Charging"
	GunStatusFinishing GunStatus = "Finishing"
	GunStatusFaulted   GunStatus = "Faulted"
	GunStatusReserved  GunStatus = "Reserved"
)

// CommandStatus is the device answer to a remote command.
type CommandStatus string

const (
	CommandStatusAccepted         CommandStatus = "Accepted"
	CommandStatusRejected         CommandStatus = "Rejected"
	CommandStatusNotSupported     CommandStatus = "NotSupported"
	CommandStatusUnknownMessageId CommandStatus = "UnknownMessageId"
)

type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFaulted   SessionStatus = "faulted"
)

type AlertType string

const (
	AlertTypeTemperature AlertType = "temperature"
	AlertTypeEfficiency  AlertType = "efficiency"
	AlertTypePower       AlertType = "power"
	AlertTypeSafety      AlertType = "safety"
)

type AlertSeverity string

const (
	AlertSeverityInfo      AlertSeverity = "info"
	AlertSeverityWarning   AlertSeverity = "warning"
	AlertSeverityCritical  AlertSeverity = "critical"
	AlertSeverityEmergency AlertSeverity = "emergency"
)

type EfficiencyLevel string

const (
	EfficiencyExcellent EfficiencyLevel = "excellent"
	EfficiencyGood      EfficiencyLevel = "good"
	EfficiencyAverage   EfficiencyLevel = "average"
	EfficiencyPoor      EfficiencyLevel = "poor"
	EfficiencyCritical  EfficiencyLevel = "critical"
)

// EfficiencyLevelOf maps a charging efficiency ratio to its category.
func EfficiencyLevelOf(efficiency float64) EfficiencyLevel {
	switch {
	case efficiency >= 0.97:
		return EfficiencyExcellent
	case efficiency >= 0.93:
		return EfficiencyGood
	case efficiency >= 0.88:
		return EfficiencyAverage
	case efficiency >= 0.85:
		return EfficiencyPoor
	default:
		return EfficiencyCritical
	}
}

type CoolingStatus string

const (
	CoolingStatusNormal   CoolingStatus = "normal"
	CoolingStatusHigh     CoolingStatus = "high"
	CoolingStatusCritical CoolingStatus = "critical"
	CoolingStatusFault    CoolingStatus = "fault"
)
