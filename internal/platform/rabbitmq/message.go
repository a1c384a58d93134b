package rabbitmq

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const attemptHeader = "x-attempt"

// ErrInvalidMessage is returned for message bodies that do not name a job.
var ErrInvalidMessage = errors.New("invalid job message")

type jobMessage struct {
	JobID int64 `json:"job_id"`
}

func encodeMessage(jobID int64) ([]byte, error) {
	return json.Marshal(jobMessage{JobID: jobID})
}

func decodeMessage(body []byte) (int64, error) {
	var m jobMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if m.JobID <= 0 {
		return 0, fmt.Errorf("%w: job_id %d", ErrInvalidMessage, m.JobID)
	}
	return m.JobID, nil
}

// attemptFrom reads the delivery attempt from message headers. Messages
// published without the header are on their first attempt.
func attemptFrom(headers amqp.Table) int {
	switch v := headers[attemptHeader].(type) {
	case int32:
		return max(int(v), 1)
	case int64:
		return max(int(v), 1)
	case int:
		return max(v, 1)
	default:
		return 1
	}
}

// expiration formats a per-message TTL in milliseconds, as the broker
// expects.
func expiration(delay time.Duration) string {
	return strconv.FormatInt(max(delay.Milliseconds(), 1), 10)
}

func publishing(body []byte, attempt int) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Timestamp:    time.Now(),
		Headers:      amqp.Table{attemptHeader: int32(attempt)},
	}
}
