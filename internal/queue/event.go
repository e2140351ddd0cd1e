// Package queue carries operation logs over RabbitMQ. The publisher is an
// audit sink; the consumer drains the queue into the database.
package queue

import (
	"time"

	"github.com/grx1242064203-bit/fund-calendar/internal/model"
)

// DefaultQueue is the queue operation events are published to.
const DefaultQueue = "audit.operation"

// OperationEvent is the message body published for each operation log.
type OperationEvent struct {
	UserID          *uint64   `json:"userId,omitempty"`
	OperationType   string    `json:"operationType"`
	OperationDetail string    `json:"operationDetail,omitempty"`
	IPAddress       string    `json:"ipAddress,omitempty"`
	UserAgent       string    `json:"userAgent,omitempty"`
	OccurredAt      time.Time `json:"occurredAt"`
}

func eventFromLog(l model.OperationLog, now time.Time) OperationEvent {
	return OperationEvent{
		UserID:          l.UserID,
		OperationType:   l.OperationType,
		OperationDetail: l.OperationDetail,
		IPAddress:       l.IPAddress,
		UserAgent:       l.UserAgent,
		OccurredAt:      now.UTC(),
	}
}

func (e OperationEvent) toLog() model.OperationLog {
	return model.OperationLog{
		UserID:          e.UserID,
		OperationType:   e.OperationType,
		OperationDetail: e.OperationDetail,
		IPAddress:       e.IPAddress,
		UserAgent:       e.UserAgent,
		CreatedAt:       e.OccurredAt,
	}
}
