package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

const (
	// StorageKey names the persisted record.
	StorageKey = "alerts-store-v4"

	// SchemaVersion is the current persisted schema version.
	SchemaVersion = 4
)

// record is the versioned envelope written to the KV port.
type record struct {
	State   json.RawMessage `json:"state"`
	Version int             `json:"version"`
}

func encodeRecord(s State) ([]byte, error) {
	state, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return json.Marshal(record{State: state, Version: SchemaVersion})
}

// decodeRecord parses a persisted blob into a current State, running
// migrations for older versions. Only an unreadable envelope is an error;
// malformed contents degrade to empty collections.
func decodeRecord(blob []byte, now time.Time) (State, int, error) {
	var rec record
	if err := json.Unmarshal(blob, &rec); err != nil {
		return NewState(), 0, fmt.Errorf("unmarshal record: %w", err)
	}
	if rec.Version < SchemaVersion {
		return MigrateV4(rec.State, now), rec.Version, nil
	}
	return decodeCurrent(rec.State), rec.Version, nil
}

// decodeCurrent decodes a current-schema state blob field by field so one
// broken collection does not take the other down with it.
func decodeCurrent(raw json.RawMessage) State {
	s := NewState()

	var fields struct {
		ActiveAlerts json.RawMessage `json:"activeAlerts"`
		TriggeredAll json.RawMessage `json:"triggeredAll"`
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return s
	}

	var active map[string][]PriceAlert
	if err := json.Unmarshal(fields.ActiveAlerts, &active); err == nil {
		for coin, list := range active {
			if list == nil {
				list = []PriceAlert{}
			}
			// the map key is authoritative; retiring looks alerts up by CoinID
			for i := range list {
				list[i].CoinID = coin
			}
			s.ActiveAlerts[coin] = list
		}
	}
	s.TriggeredAll = decodeTriggered(fields.TriggeredAll)
	return s
}

func decodeTriggered(raw json.RawMessage) []TriggeredAlert {
	var out []TriggeredAlert
	if err := json.Unmarshal(raw, &out); err != nil || out == nil {
		return []TriggeredAlert{}
	}
	return out
}

// legacyShape tags the forms a coin's entry took before schema version 4.
type legacyShape int

const (
	shapeMissing legacyShape = iota // null or absent
	shapeSingle                     // one alert object
	shapeList                       // array of alert objects
	shapeInvalid                    // anything else
)

// legacyCoinAlerts is one coin's entry in a pre-v4 record.
type legacyCoinAlerts struct {
	shape legacyShape
	items []json.RawMessage
}

// UnmarshalJSON never fails; unrecognized input is tagged shapeInvalid.
func (l *legacyCoinAlerts) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		l.shape = shapeMissing
	case trimmed[0] == '{':
		l.shape = shapeSingle
		l.items = []json.RawMessage{json.RawMessage(trimmed)}
	case trimmed[0] == '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			l.shape = shapeInvalid
			return nil
		}
		l.shape = shapeList
		l.items = items
	default:
		l.shape = shapeInvalid
	}
	return nil
}

// legacyAlert is a leniently decoded pre-v4 alert. Its coinId is ignored in
// favor of the map key it is filed under.
type legacyAlert struct {
	ID           *string         `json:"id"`
	Direction    Direction       `json:"direction"`
	TargetUSD    float64         `json:"targetUsd"`
	CreatedAtUTC json.RawMessage `json:"createdAtUtc"`
}

// createdAt parses the legacy timestamp; missing or unparseable is zero.
func (a legacyAlert) createdAt() time.Time {
	var s string
	if err := json.Unmarshal(a.CreatedAtUTC, &s); err != nil {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

// MigrateV4 rewrites a pre-v4 state blob into the current schema. For each
// coin it keeps at most one alert per direction, preferring the later (or
// equally timed, later seen) createdAtUtc, and assigns synthetic ids to
// alerts missing one. It never fails: unreadable input yields empty
// collections. Already-normalized input comes back unchanged.
func MigrateV4(raw json.RawMessage, now time.Time) State {
	s := NewState()

	var fields struct {
		ActiveAlerts map[string]legacyCoinAlerts `json:"activeAlerts"`
		TriggeredAll json.RawMessage             `json:"triggeredAll"`
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		// activeAlerts itself may be the wrong type, salvage history
		var partial struct {
			TriggeredAll json.RawMessage `json:"triggeredAll"`
		}
		if json.Unmarshal(raw, &partial) == nil {
			s.TriggeredAll = decodeTriggered(partial.TriggeredAll)
		}
		return s
	}

	for coin, entry := range fields.ActiveAlerts {
		s.ActiveAlerts[coin] = collapseLegacy(coin, entry, now)
	}
	s.TriggeredAll = decodeTriggered(fields.TriggeredAll)
	return s
}

func collapseLegacy(coin string, entry legacyCoinAlerts, now time.Time) []PriceAlert {
	type candidate struct {
		alert PriceAlert
		at    time.Time
	}

	var order []Direction
	best := make(map[Direction]candidate, 2)

	for _, raw := range entry.items {
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			continue
		}
		var la legacyAlert
		if err := json.Unmarshal(raw, &la); err != nil {
			continue
		}
		if !la.Direction.Valid() {
			continue
		}

		id := ""
		if la.ID != nil {
			id = *la.ID
		}
		if id == "" {
			id = fmt.Sprintf("migrated-%s-%s-%d", coin, la.Direction, now.UnixMilli())
		}
		at := la.createdAt()
		c := candidate{
			alert: PriceAlert{
				ID:           id,
				CoinID:       coin,
				Direction:    la.Direction,
				TargetUSD:    la.TargetUSD,
				CreatedAtUTC: at,
			},
			at: at,
		}

		prev, seen := best[la.Direction]
		if !seen {
			order = append(order, la.Direction)
			best[la.Direction] = c
			continue
		}
		if !c.at.Before(prev.at) {
			best[la.Direction] = c
		}
	}

	out := make([]PriceAlert, 0, len(order))
	for _, d := range order {
		out = append(out, best[d].alert)
	}
	return out
}
