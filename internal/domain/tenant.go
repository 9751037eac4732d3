package domain

import (
	"encoding/json"

	"github.com/aeroframe-io/core/internal/apperr"
)

// Tenant is the reconstructed in-memory state of a tenant aggregate.
type Tenant struct {
	ID      string
	Name    string
	Version uint64
}

func EmptyTenant(id string) *Tenant { return &Tenant{ID: id} }

func (t *Tenant) Exists() bool { return t.Version > 0 }

func (t *Tenant) Apply(ev StoredEvent) error {
	switch ev.Type {
	case EventTenantCreated:
		var p TenantCreatedPayload
		if err := json.Unmarshal(ev.Payload, &p); err != nil {
			return err
		}

		t.Name = p.Name
	}

	t.Version = ev.Sequence

	return nil
}

func FoldTenant(id string, events []StoredEvent) (*Tenant, error) {
	t := EmptyTenant(id)

	for _, ev := range events {
		if err := t.Apply(ev); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// CreateTenant is the sole tenant command: creation case, expected_version
// must be 0 at append time.
func CreateTenant(name string) (NewEvent, error) {
	if name == "" {
		return NewEvent{}, apperr.Validation("tenant name is required", nil)
	}

	return NewEvent{Type: EventTenantCreated, Payload: encode(TenantCreatedPayload{Name: name})}, nil
}
