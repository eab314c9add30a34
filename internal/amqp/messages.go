package amqp

import (
	"encoding/json"
	"time"
)

// PurchaseImportedMessage announces newly stored purchase records so the
// worker can mirror them to the spreadsheet and refresh report snapshots.
type PurchaseImportedMessage struct {
	OrgID     string    `json:"org_id"`
	IDs       []int64   `json:"ids"`
	Months    []string  `json:"months"`
	Timestamp time.Time `json:"timestamp"`
}

func (m *PurchaseImportedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func PurchaseImportedFromJSON(data []byte) (*PurchaseImportedMessage, error) {
	var msg PurchaseImportedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
