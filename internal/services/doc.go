// Package services derives the service descriptors a container publishes.
//
// A container opts in by setting the discovery variable (DISCOVER by default)
// in its environment or as a label. The value lists one or more
// declarations, each binding a service name to one exposed container port:
//
//	DISCOVER=web:80/tcp,metrics:9100#internal
//
// The port is resolved to the host port it is published on (or used as is for
// host-network containers) and combined with the host identity into a
// Descriptor. Declarations that cannot be parsed or resolved are reported as
// MalformedDeclarationError values and skipped; the rest of the container's
// declarations are still extracted.
//
// The grammar is pluggable through the Parser interface. DefaultParser
// implements the form above and JSONParser accepts a JSON array.
package services
