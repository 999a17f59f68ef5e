package services

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Declaration is one parsed service declaration, before port resolution.
type Declaration struct {
	Name     string
	Port     int // container port
	Protocol Protocol
	Tags     []string
	Raw      string
}

// Parser turns the value of the discovery variable into declarations.
// Malformed declarations are reported individually and never stop the
// remaining ones from being parsed.
type Parser interface {
	Parse(value string) ([]Declaration, []error)
}

// Grammar names accepted by NewParser.
const (
	GrammarDefault = "default"
	GrammarJSON    = "json"
)

// NewParser returns the parser for a grammar name.
func NewParser(grammar string) (Parser, error) {
	switch strings.ToLower(grammar) {
	case GrammarDefault, "":
		return DefaultParser{}, nil
	case GrammarJSON:
		return JSONParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported declaration grammar: %s", grammar)
	}
}

var nameRe = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

func validateDeclaration(d Declaration) (Declaration, error) {
	if !nameRe.MatchString(d.Name) {
		return d, fmt.Errorf("invalid service name %q", d.Name)
	}
	if d.Port < 1 || d.Port > 65535 {
		return d, fmt.Errorf("port %d out of range", d.Port)
	}
	for _, t := range d.Tags {
		if !nameRe.MatchString(t) {
			return d, fmt.Errorf("invalid tag %q", t)
		}
	}
	d.Tags = normalizeTags(d.Tags)
	return d, nil
}

// DefaultParser reads comma separated declarations of the form
//
//	name:port[/protocol][#tag[+tag...]]
//
// e.g. "web:80/tcp, dns:53/udp#internal+primary". Protocol defaults to tcp.
type DefaultParser struct{}

func (DefaultParser) Parse(value string) ([]Declaration, []error) {
	var (
		decls []Declaration
		errs  []error
	)
	for _, raw := range strings.Split(value, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		d, err := parseDefaultDeclaration(raw)
		if err != nil {
			errs = append(errs, &MalformedDeclarationError{Declaration: raw, Reason: err.Error()})
			continue
		}
		decls = append(decls, d)
	}
	return decls, errs
}

func parseDefaultDeclaration(raw string) (Declaration, error) {
	d := Declaration{Raw: raw}

	head, tags, hasTags := strings.Cut(raw, "#")
	if hasTags {
		for _, t := range strings.Split(tags, "+") {
			d.Tags = append(d.Tags, strings.TrimSpace(t))
		}
	}

	name, rest, ok := strings.Cut(head, ":")
	if !ok {
		return d, fmt.Errorf("expected name:port")
	}
	d.Name = strings.TrimSpace(name)

	portStr, proto, _ := strings.Cut(rest, "/")
	port, err := strconv.Atoi(strings.TrimSpace(portStr))
	if err != nil {
		return d, fmt.Errorf("invalid port %q", portStr)
	}
	d.Port = port

	d.Protocol, err = ParseProtocol(proto)
	if err != nil {
		return d, err
	}
	return validateDeclaration(d)
}

// JSONParser reads a JSON array of declarations:
//
//	[{"name":"web","port":80,"protocol":"tcp","tags":["public"]}]
//
// A single object is accepted as well.
type JSONParser struct{}

type jsonDeclaration struct {
	Name     string   `json:"name"`
	Port     int      `json:"port"`
	Protocol string   `json:"protocol"`
	Tags     []string `json:"tags"`
}

func (JSONParser) Parse(value string) ([]Declaration, []error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	var items []json.RawMessage
	if strings.HasPrefix(value, "{") {
		items = []json.RawMessage{json.RawMessage(value)}
	} else if err := json.Unmarshal([]byte(value), &items); err != nil {
		return nil, []error{&MalformedDeclarationError{Declaration: value, Reason: err.Error()}}
	}

	var (
		decls []Declaration
		errs  []error
	)
	for _, item := range items {
		raw := string(item)
		var jd jsonDeclaration
		if err := json.Unmarshal(item, &jd); err != nil {
			errs = append(errs, &MalformedDeclarationError{Declaration: raw, Reason: err.Error()})
			continue
		}
		proto, err := ParseProtocol(jd.Protocol)
		if err != nil {
			errs = append(errs, &MalformedDeclarationError{Declaration: raw, Reason: err.Error()})
			continue
		}
		d, err := validateDeclaration(Declaration{
			Name:     jd.Name,
			Port:     jd.Port,
			Protocol: proto,
			Tags:     jd.Tags,
			Raw:      raw,
		})
		if err != nil {
			errs = append(errs, &MalformedDeclarationError{Declaration: raw, Reason: err.Error()})
			continue
		}
		decls = append(decls, d)
	}
	return decls, errs
}
