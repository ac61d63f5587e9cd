// Package driving defines the inbound ports: interfaces the HTTP API
// and CLI adapters use to drive the core services.
package driving
