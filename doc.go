// Package xcubegedidb serves GEDI (Global Ecosystem Dynamics Investigation)
// lidar products through a pluggable data store interface.
//
// # Architecture
//
// The module is organized in three layers:
//
//	┌─────────────────────────────────────┐
//	│       NATS Gateway (gateway)        │  catalog, describe, open,
//	│   request/reply + JetStream cache   │  search subjects
//	└─────────────────────────────────────┘
//	           ↓ calls
//	┌─────────────────────────────────────┐
//	│     Data Store Contract (datastore) │  DataStore interface,
//	│   registry, parameter schemas       │  descriptors, datasets
//	└─────────────────────────────────────┘
//	           ↓ implemented by
//	┌─────────────────────────────────────┐
//	│      GEDI Store (gedi, gedidb)      │  product levels, CMR
//	│   gediDB API client, CMR client     │  metadata, shot queries
//	└─────────────────────────────────────┘
//
// The datastore package defines the store contract: named stores register
// a factory and a parameter schema with a Registry, and callers open them
// by name with JSON parameters. The gedi package implements that contract
// for the four GEDI product levels (L2A, L2B, L4A, L4C), delegating data
// retrieval to the gediDB web service (gedidb package) and collection
// metadata to NASA's Common Metadata Repository.
//
// The gateway package exposes a store's operations as NATS request/reply
// subjects so non-Go clients can use it, with described collections
// cached in a JetStream key-value bucket.
//
// Supporting packages: errors (classified errors), natsclient (NATS
// connection with circuit breaker), metric (Prometheus registry and HTTP
// server), health (subsystem health endpoint), config (file plus
// environment configuration), pkg/retry and pkg/cache.
//
// The cmd/gedistored daemon wires all of this together.
package xcubegedidb
