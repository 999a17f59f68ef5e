package registry

import (
	"fmt"
	"strconv"
	"strings"
)

// Layout derives registry keys. Entries live at
//
//	/<prefix>/<realm>/<service>/<hostId>-<port>
//
// so that listing a realm and service finds every provider, and the last
// segment lets an agent recognise its own entries after a restart. Downstream
// resolvers depend on this layout.
type Layout struct {
	prefix string
}

// NewLayout normalizes prefix to a leading slash and no trailing slash.
func NewLayout(prefix string) Layout {
	prefix = "/" + strings.Trim(prefix, "/")
	if prefix == "/" {
		prefix = ""
	}
	return Layout{prefix: prefix}
}

// Prefix returns the normalized root prefix.
func (l Layout) Prefix() string {
	return l.prefix
}

// Key returns the key of one registration.
func (l Layout) Key(realm, service, hostID string, port int) string {
	return fmt.Sprintf("%s/%s/%s/%s-%d", l.prefix, realm, service, hostID, port)
}

// RealmPrefix returns the prefix holding every service of a realm.
func (l Layout) RealmPrefix(realm string) string {
	return fmt.Sprintf("%s/%s/", l.prefix, realm)
}

// ServicePrefix returns the prefix holding every provider of a service.
func (l Layout) ServicePrefix(realm, service string) string {
	return fmt.Sprintf("%s/%s/%s/", l.prefix, realm, service)
}

// KeyParts is a parsed registry key.
type KeyParts struct {
	Realm   string
	Service string
	HostID  string
	Port    int
}

// ParseKey splits a key produced by Key. Host ids may contain dashes, so the
// port is taken from after the last one.
func (l Layout) ParseKey(key string) (KeyParts, error) {
	if !strings.HasPrefix(key, l.prefix+"/") {
		return KeyParts{}, fmt.Errorf("key %q is outside prefix %q", key, l.prefix)
	}
	segments := strings.Split(strings.TrimPrefix(key, l.prefix+"/"), "/")
	if len(segments) != 3 {
		return KeyParts{}, fmt.Errorf("key %q does not have realm/service/instance segments", key)
	}

	instance := segments[2]
	dash := strings.LastIndex(instance, "-")
	if dash <= 0 || dash == len(instance)-1 {
		return KeyParts{}, fmt.Errorf("key %q has no <host>-<port> instance segment", key)
	}
	port, err := strconv.Atoi(instance[dash+1:])
	if err != nil || port < 1 || port > 65535 {
		return KeyParts{}, fmt.Errorf("key %q has an invalid port", key)
	}

	return KeyParts{
		Realm:   segments[0],
		Service: segments[1],
		HostID:  instance[:dash],
		Port:    port,
	}, nil
}

// OwnedBy reports whether key is a registration of hostID in realm.
func (l Layout) OwnedBy(key, realm, hostID string) bool {
	parts, err := l.ParseKey(key)
	if err != nil {
		return false
	}
	return parts.Realm == realm && parts.HostID == hostID
}
