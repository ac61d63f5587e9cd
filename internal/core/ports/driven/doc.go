// Package driven defines the outbound ports: interfaces the core
// services depend on, implemented by adapters (object storage, the
// SQLite replica, the article generator).
package driven
