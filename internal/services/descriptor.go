package services

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
)

// Protocol is the transport protocol of a published service.
type Protocol string

const (
	ProtocolTCP Protocol = "tcp"
	ProtocolUDP Protocol = "udp"
)

// ParseProtocol accepts tcp or udp (case-insensitive). Empty means tcp.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "tcp":
		return ProtocolTCP, nil
	case "udp":
		return ProtocolUDP, nil
	default:
		return "", fmt.Errorf("unsupported protocol %q", s)
	}
}

// Descriptor is one logical service exposed by one container on this host.
type Descriptor struct {
	Name        string
	HostID      string
	Realm       string
	IP          string
	Port        int
	Protocol    Protocol
	ContainerID string
	Tags        []string
}

// Identity uniquely identifies a registration instance. It is comparable and
// used as the key of the desired set.
type Identity struct {
	Realm       string
	Name        string
	HostID      string
	ContainerID string
	Port        int
}

func (i Identity) String() string {
	return fmt.Sprintf("%s/%s@%s:%d(%s)", i.Realm, i.Name, i.HostID, i.Port, shortID(i.ContainerID))
}

// Identity returns the descriptor's identity key.
func (d Descriptor) Identity() Identity {
	return Identity{
		Realm:       d.Realm,
		Name:        d.Name,
		HostID:      d.HostID,
		ContainerID: d.ContainerID,
		Port:        d.Port,
	}
}

// Address returns ip:port.
func (d Descriptor) Address() string {
	return net.JoinHostPort(d.IP, strconv.Itoa(d.Port))
}

// Equal reports whether two descriptors would produce the same registry value.
func (d Descriptor) Equal(o Descriptor) bool {
	if d.Identity() != o.Identity() || d.IP != o.IP || d.Protocol != o.Protocol {
		return false
	}
	if len(d.Tags) != len(o.Tags) {
		return false
	}
	for i := range d.Tags {
		if d.Tags[i] != o.Tags[i] {
			return false
		}
	}
	return true
}

// normalizeTags sorts and de-duplicates tags. The result is nil when empty.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
