// Package events mirrors classified radio traffic to an external broker.
package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	SourceWatcher = "watcher"
	SourceChat    = "chat"
)

type Meta struct {
	ID             string    `json:"id"`
	Kind           string    `json:"kind"`
	Source         string    `json:"source"`
	CorrelationKey string    `json:"correlation_key,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// RadioEvent is the payload published for one classified artifact.
type RadioEvent struct {
	Path      string   `json:"path"`
	Kind      string   `json:"kind"`
	Date      string   `json:"date,omitempty"`
	Time      string   `json:"time,omitempty"`
	From      string   `json:"from,omitempty"`
	To        string   `json:"to,omitempty"`
	Retry     int      `json:"retry,omitempty"`
	Text      string   `json:"text"`
	Commands  []string `json:"commands,omitempty"`
	Addressed bool     `json:"addressed,omitempty"`
}

type Envelope struct {
	Meta Meta       `json:"meta"`
	Data RadioEvent `json:"data"`
}

// NewEnvelope stamps ev with a time-ordered id.
func NewEnvelope(source, correlationKey string, ev RadioEvent, now time.Time) (Envelope, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Envelope{}, err
	}
	env := Envelope{
		Meta: Meta{
			ID:             id.String(),
			Kind:           ev.Kind,
			Source:         source,
			CorrelationKey: strings.TrimSpace(correlationKey),
			CreatedAt:      now.UTC(),
		},
		Data: ev,
	}
	return env, env.Validate()
}

// RoutingKey is the topic-exchange key for the envelope, e.g. radio.sent_acked.
func (e Envelope) RoutingKey() string {
	return "radio." + e.Meta.Kind
}

func (e Envelope) Validate() error {
	if err := validateRequiredCanonicalString("meta.id", e.Meta.ID); err != nil {
		return err
	}
	id, err := uuid.Parse(e.Meta.ID)
	if err != nil || id.Version() != uuid.Version(7) {
		return fmt.Errorf("meta.id must be uuid_v7")
	}
	if err := validateRequiredCanonicalString("meta.kind", e.Meta.Kind); err != nil {
		return err
	}
	switch e.Meta.Source {
	case SourceWatcher, SourceChat:
	default:
		return fmt.Errorf("meta.source is invalid")
	}
	if e.Meta.CreatedAt.IsZero() {
		return fmt.Errorf("meta.created_at is required")
	}
	if err := validateRequiredCanonicalString("data.path", e.Data.Path); err != nil {
		return err
	}
	return nil
}

func (e Envelope) Encode() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event envelope: %w", err)
	}
	return b, nil
}

func validateRequiredCanonicalString(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", field)
	}
	if strings.TrimSpace(value) != value {
		return fmt.Errorf("%s must not contain leading/trailing spaces", field)
	}
	return nil
}
