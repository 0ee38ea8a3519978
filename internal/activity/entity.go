package activity

import "time"

// Activity is one append-only feed record derived from a bus event.
type Activity struct {
	ID         string            `yaml:"id" json:"id"`
	Type       string            `yaml:"type" json:"type"`
	ResourceID string            `yaml:"resource_id" json:"resourceId"`
	Message    string            `yaml:"message" json:"message"`
	Metadata   map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt  time.Time         `yaml:"created_at" json:"createdAt"`
}
