package models

import (
	"evpilot/types"
	"time"
)

type Alert struct {
	Id           string              `json:"id" bson:"id"`
	GunId        string              `json:"gun_id" bson:"gun_id"`
	Type         types.AlertType     `json:"type" bson:"type"`
	Severity     types.AlertSeverity `json:"severity" bson:"severity"`
	Message      string              `json:"message" bson:"message"`
	Timestamp    time.Time           `json:"timestamp" bson:"timestamp"`
	Acknowledged bool                `json:"acknowledged" bson:"acknowledged"`
	AutoResolve  bool                `json:"auto_resolve" bson:"auto_resolve"`
}
