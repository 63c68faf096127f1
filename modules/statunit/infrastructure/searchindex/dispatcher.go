package searchindex

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iota-uz/statreg/pkg/outbox"
)

// NewDispatcher routes outbox messages of Topic to the index. Any other topic
// fails and the relay eventually marks it dead.
func NewDispatcher(client Client) outbox.Dispatcher {
	return outbox.TopicRouter{
		Topic: outbox.DispatcherFunc(func(ctx context.Context, msg outbox.DispatchedMessage) error {
			var doc Document
			if err := json.Unmarshal(msg.Payload, &doc); err != nil {
				return fmt.Errorf("decode index document %s: %w", msg.Meta.Key, err)
			}
			if doc.Deleted {
				return client.Delete(ctx, doc.RegID)
			}
			return client.Upsert(ctx, doc)
		}),
	}
}
