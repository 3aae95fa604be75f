package consumer

import (
	"encoding/json"

	"github.com/vkuzmin/pizza-saga/internal/platform/events"
)

// decodePayload десериализует payload конверта события в указанную структуру.
func decodePayload(envelope *events.Envelope, out interface{}) error {
	return json.Unmarshal(envelope.Payload, out)
}
