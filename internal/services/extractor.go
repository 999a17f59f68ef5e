package services

import (
	"fmt"
	"sort"

	"discover/internal/containerizer"
)

// ExtractorConfig carries the host identity stamped onto every descriptor.
type ExtractorConfig struct {
	Variable string // discovery variable name, e.g. DISCOVER
	Grammar  string
	HostID   string
	Realm    string
	HostIP   string
}

// Extractor derives service descriptors from container metadata. It holds no
// mutable state: the same metadata always yields the same descriptors.
type Extractor struct {
	variable string
	parser   Parser
	hostID   string
	realm    string
	hostIP   string
}

// NewExtractor creates an extractor using the parser for cfg.Grammar.
func NewExtractor(cfg ExtractorConfig) (*Extractor, error) {
	parser, err := NewParser(cfg.Grammar)
	if err != nil {
		return nil, err
	}
	return NewExtractorWithParser(cfg, parser), nil
}

// NewExtractorWithParser creates an extractor with a custom parser.
func NewExtractorWithParser(cfg ExtractorConfig, parser Parser) *Extractor {
	return &Extractor{
		variable: cfg.Variable,
		parser:   parser,
		hostID:   cfg.HostID,
		realm:    cfg.Realm,
		hostIP:   cfg.HostIP,
	}
}

// Extract returns the valid descriptors of a container, sorted by name and
// port, together with one MalformedDeclarationError per skipped declaration.
// A container without the discovery variable yields nothing.
func (e *Extractor) Extract(meta containerizer.ContainerMeta) ([]Descriptor, []error) {
	value, ok := meta.Lookup(e.variable)
	if !ok {
		return nil, nil
	}

	decls, errs := e.parser.Parse(value)
	for _, err := range errs {
		if m, ok := err.(*MalformedDeclarationError); ok {
			m.ContainerID = meta.ID
		}
	}

	seen := make(map[Identity]struct{}, len(decls))
	descriptors := make([]Descriptor, 0, len(decls))
	for _, decl := range decls {
		port, err := resolvePort(meta, decl)
		if err != nil {
			errs = append(errs, &MalformedDeclarationError{
				ContainerID: meta.ID,
				Declaration: decl.Raw,
				Reason:      err.Error(),
			})
			continue
		}

		d := Descriptor{
			Name:        decl.Name,
			HostID:      e.hostID,
			Realm:       e.realm,
			IP:          e.hostIP,
			Port:        port,
			Protocol:    decl.Protocol,
			ContainerID: meta.ID,
			Tags:        decl.Tags,
		}
		if _, dup := seen[d.Identity()]; dup {
			errs = append(errs, &MalformedDeclarationError{
				ContainerID: meta.ID,
				Declaration: decl.Raw,
				Reason:      fmt.Sprintf("duplicates an earlier declaration of %s on port %d", d.Name, port),
			})
			continue
		}
		seen[d.Identity()] = struct{}{}
		descriptors = append(descriptors, d)
	}

	sort.Slice(descriptors, func(i, j int) bool {
		if descriptors[i].Name != descriptors[j].Name {
			return descriptors[i].Name < descriptors[j].Name
		}
		return descriptors[i].Port < descriptors[j].Port
	})
	return descriptors, errs
}

// resolvePort maps the declared container port onto the port reachable from
// other hosts.
func resolvePort(meta containerizer.ContainerMeta, decl Declaration) (int, error) {
	if meta.HostNetwork {
		return decl.Port, nil
	}
	key := containerizer.PortKey{Port: decl.Port, Protocol: string(decl.Protocol)}
	for _, binding := range meta.Ports[key] {
		if binding.HostPort > 0 {
			return binding.HostPort, nil
		}
	}
	return 0, fmt.Errorf("container port %s is not published", key)
}
