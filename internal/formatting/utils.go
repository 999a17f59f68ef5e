package formatting

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"discover/internal/registry"
)

// EntryView is the serialized form of an entry for json and yaml output. It
// carries the registry key, which the stored value does not.
type EntryView struct {
	Key          string    `json:"key" yaml:"key"`
	Service      string    `json:"service" yaml:"service"`
	Host         string    `json:"host" yaml:"host"`
	IP           string    `json:"ip" yaml:"ip"`
	Port         int       `json:"port" yaml:"port"`
	Protocol     string    `json:"protocol" yaml:"protocol"`
	Tags         []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
	Container    string    `json:"container" yaml:"container"`
	Agent        string    `json:"agent,omitempty" yaml:"agent,omitempty"`
	RegisteredAt time.Time `json:"registeredAt" yaml:"registeredAt"`
}

// Views converts entries to their output form, sorted by key.
func Views(entries []registry.Entry) []EntryView {
	out := make([]EntryView, 0, len(entries))
	for _, e := range sortEntries(entries) {
		out = append(out, EntryView{
			Key:          e.Key,
			Service:      e.Service,
			Host:         e.Host,
			IP:           e.IP,
			Port:         e.Port,
			Protocol:     e.Protocol,
			Tags:         e.Tags,
			Container:    e.Container,
			Agent:        e.Agent,
			RegisteredAt: e.RegisteredAt,
		})
	}
	return out
}

func sortEntries(entries []registry.Entry) []registry.Entry {
	sorted := append([]registry.Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })
	return sorted
}

// tagsColumn is the index of TAGS in columns.
const tagsColumn = 4

// columns returns the header names for table and plain output.
func columns(wide bool) []string {
	cols := []string{"SERVICE", "HOST", "ADDRESS", "PROTOCOL", "TAGS", "CONTAINER"}
	if wide {
		cols = append(cols, "AGENT", "REGISTERED", "KEY")
	}
	return cols
}

// row renders one entry as the cells of columns(wide).
func row(e registry.Entry, wide bool) []string {
	cells := []string{
		e.Service,
		e.Host,
		fmt.Sprintf("%s:%d", e.IP, e.Port),
		e.Protocol,
		strings.Join(e.Tags, ","),
		shortContainer(e.Container),
	}
	if wide {
		registered := ""
		if !e.RegisteredAt.IsZero() {
			registered = e.RegisteredAt.UTC().Format(time.RFC3339)
		}
		cells = append(cells, e.Agent, registered, e.Key)
	}
	return cells
}

func shortContainer(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
