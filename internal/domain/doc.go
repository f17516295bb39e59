// Package domain holds the client-operations entities (users, clients,
// meetings, invoices) and the SQLite store the automation engine scans.
//
// The store serves two roles:
//
//	┌─────────────┐   ListEntitiesInWindow    ┌──────────────┐
//	│  automation │ ────────────────────────▶ │ SQLiteStore  │
//	│   Scanner   │                           │              │
//	└─────────────┘   GetUserProfile          │  meetings    │
//	┌─────────────┐ ────────────────────────▶ │  invoices    │
//	│  automation │                           │  clients     │
//	│ Dispatcher  │                           │  users       │
//	└─────────────┘                           └──────────────┘
//
// Window queries are inclusive on both bounds and filter by entity
// status: meetings must be scheduled, invoices must be sent. Each row
// is flattened into an automation.EntitySnapshot with the client joined
// in, so the engine never reaches back into domain tables mid-dispatch.
//
// Timestamps are stored as RFC3339 TEXT in UTC, matching the rest of
// the schema.
package domain
