package amqp

import (
	"encoding/json"
	"time"

	"transactions/internal/core"
)

// RoutingKeyDatasetSeeded is the routing key of DatasetSeededMessage.
const RoutingKeyDatasetSeeded = "dataset.seeded"

// DatasetSeededMessage announces that the collection was replaced.
// Consumers re-read the store; the records themselves are not carried.
type DatasetSeededMessage struct {
	BatchID   string    `json:"batchId"`
	Count     int       `json:"count"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

func NewDatasetSeededMessage(res core.SeedResult) *DatasetSeededMessage {
	return &DatasetSeededMessage{
		BatchID:   res.BatchID,
		Count:     res.Inserted,
		Source:    res.Source,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *DatasetSeededMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func DatasetSeededMessageFromJSON(data []byte) (*DatasetSeededMessage, error) {
	var msg DatasetSeededMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
