package models

import "reflect"

// EventKind is the kind of record mutation observed by the dispatcher.
type EventKind string

const (
	EventRecordCreated EventKind = "record_created"
	EventRecordUpdated EventKind = "record_updated"
)

// DomainEvent is a record mutation delivered by the data platform's mutation
// path: a snapshot of the record after the change and, for updates, the
// snapshot before it.
type DomainEvent struct {
	ObjectType string         `json:"object_type" validate:"required"`
	Kind       EventKind      `json:"kind"        validate:"required"`
	RecordID   string         `json:"record_id"   validate:"required"`
	Record     map[string]any `json:"record"      validate:"required"`
	Previous   map[string]any `json:"previous,omitempty"`
}

// ChangedFields lists the fields whose values differ between the previous
// and current record snapshots. Fields present in only one snapshot count
// as changed. Returns nil for create events.
func (ev *DomainEvent) ChangedFields() []string {
	if ev.Previous == nil {
		return nil
	}

	var changed []string

	for field, value := range ev.Record {
		previous, ok := ev.Previous[field]
		if !ok || !reflect.DeepEqual(previous, value) {
			changed = append(changed, field)
		}
	}

	for field := range ev.Previous {
		if _, ok := ev.Record[field]; !ok {
			changed = append(changed, field)
		}
	}

	return changed
}

// FieldChanged reports whether the named field differs between snapshots.
func (ev *DomainEvent) FieldChanged(field string) bool {
	if ev.Previous == nil {
		return false
	}

	return !reflect.DeepEqual(ev.Previous[field], ev.Record[field])
}
