// Package config provides configuration management for discover.
//
// Configuration is a single YAML file layered over built-in defaults. The
// default location is /etc/discover/config.yaml; a missing default file is
// fine, a missing file passed with --config is not. Command-line flags are
// applied on top by the cmd package.
//
// # Example
//
//	host:
//	  realm: prod
//	  ip: 10.0.0.12
//	etcd:
//	  endpoints: ["http://10.0.0.2:2379"]
//	  prefix: /services
//	lease:
//	  ttl: 30s
//	  renewInterval: 10s
//	  sweepInterval: 5m
//
// # Host Identity
//
// The host id defaults to the OS hostname and the host IP to the HOST_IP
// environment variable. Both end up in registry keys and values.
//
// # Errors
//
// Every problem (unreadable file, YAML syntax, failed validation) is returned
// as a ConfigurationError. The CLI maps it to exit code 2.
package config
