package registry

import (
	"encoding/json"
	"time"

	"discover/internal/services"
)

// Entry is the stored form of a service descriptor. Key is not part of the
// serialized value.
type Entry struct {
	Key          string    `json:"-"`
	Service      string    `json:"service"`
	Host         string    `json:"host"`
	IP           string    `json:"ip"`
	Port         int       `json:"port"`
	Protocol     string    `json:"protocol"`
	Tags         []string  `json:"tags,omitempty"`
	Container    string    `json:"container"`
	Agent        string    `json:"agent,omitempty"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// NewEntry builds the entry for a descriptor.
func NewEntry(layout Layout, d services.Descriptor, agentID string, at time.Time) Entry {
	return Entry{
		Key:          layout.Key(d.Realm, d.Name, d.HostID, d.Port),
		Service:      d.Name,
		Host:         d.HostID,
		IP:           d.IP,
		Port:         d.Port,
		Protocol:     string(d.Protocol),
		Tags:         d.Tags,
		Container:    d.ContainerID,
		Agent:        agentID,
		RegisteredAt: at.UTC(),
	}
}

// Marshal encodes the entry value.
func (e Entry) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEntry decodes a stored value. The returned entry always carries
// key, even when the value cannot be decoded, so foreign or corrupt values
// can still be cleaned up.
func UnmarshalEntry(key string, value []byte) (Entry, error) {
	var e Entry
	err := json.Unmarshal(value, &e)
	e.Key = key
	return e, err
}
