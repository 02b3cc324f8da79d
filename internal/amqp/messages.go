package amqp

import (
	"encoding/json"
	"time"

	"kharcha/internal/core"
)

// NotificationMessage is the wire form of a group-activity notification.
// It carries the stored document so consumers do not need store access.
type NotificationMessage struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	CreatedBy string    `json:"createdBy"`
	GroupIDs  []string  `json:"groupIds,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewNotificationMessage(n core.Notification) *NotificationMessage {
	return &NotificationMessage{
		ID:        n.ID,
		Message:   n.Message,
		CreatedBy: n.CreatedBy,
		GroupIDs:  n.GroupIDs,
		Timestamp: time.Now(),
	}
}

func (m *NotificationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func NotificationMessageFromJSON(data []byte) (*NotificationMessage, error) {
	var msg NotificationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
