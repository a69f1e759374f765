package internal

import "time"

const FeatureLogMessageType = "featureLogMessage"

type FeatureLogMessage struct {
	Time       string    `json:"time" bson:"time"`
	TimeStamp  time.Time `json:"timestamp" bson:"timestamp"`
	Feature    string    `json:"feature" bson:"feature"`
	ChargerId  string    `json:"charger_id" bson:"charger_id"`
	Importance string    `json:"importance" bson:"importance"`
	Text       string    `json:"text" bson:"text"`
}

func (m *FeatureLogMessage) DataType() string {
	return FeatureLogMessageType
}
