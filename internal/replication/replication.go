// Package replication broadcasts committed task snapshots between planner
// instances that share a store.
package replication

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/yukikurage/task-planner/internal/models"
)

// Message carries one committed snapshot. Origin names the instance that
// committed it so that instances can drop their own echoes.
type Message struct {
	Origin string        `json:"origin"`
	Tasks  []models.Task `json:"tasks"`
	SentAt time.Time     `json:"sent_at"`
}

// Broadcaster fans snapshots out to every subscribed instance.
type Broadcaster interface {
	// Publish sends msg to every current subscriber
	Publish(ctx context.Context, msg Message) error

	// Subscribe calls handle for each message until ctx is done. It blocks.
	Subscribe(ctx context.Context, handle func(Message)) error

	Close() error
}

func Encode(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return msg, nil
}
