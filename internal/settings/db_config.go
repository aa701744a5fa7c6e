package settings

import (
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"
)

// snapshot is an immutable view of the settings table. Readers never see a
// partially refreshed map; StoreDBConfig swaps the whole snapshot at once.
type snapshot struct {
	refreshedAt time.Time
	values      map[string]json.RawMessage
}

var current atomic.Pointer[snapshot]

func init() {
	current.Store(&snapshot{values: map[string]json.RawMessage{}})
}

// StoreDBConfig replaces the in-memory settings snapshot. Keys are trimmed
// and blank keys dropped; values are copied so callers may reuse their map.
func StoreDBConfig(refreshedAt time.Time, values map[string]json.RawMessage) {
	current.Store(&snapshot{
		refreshedAt: refreshedAt.UTC(),
		values:      cloneValues(values),
	})
}

// DBConfigUpdatedAt reports when the snapshot was last refreshed from the
// database. Zero until the first refresh.
func DBConfigUpdatedAt() time.Time {
	return current.Load().refreshedAt
}

// DBConfigValue returns the raw JSON value stored for key. The returned
// slice is a copy; mutating it does not affect the snapshot.
func DBConfigValue(key string) (json.RawMessage, bool) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false
	}
	raw, ok := current.Load().values[key]
	if !ok {
		return nil, false
	}
	return append(json.RawMessage(nil), raw...), true
}

func cloneValues(values map[string]json.RawMessage) map[string]json.RawMessage {
	cloned := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		cloned[key] = append(json.RawMessage(nil), v...)
	}
	return cloned
}
