// Package automation provides the trigger-and-action execution engine
// for Relay Core.
//
// Automations are user-defined rules that pair a time-window trigger
// (e.g. "a meeting starts within the next 1-3 hours") with an action
// (e.g. "send a reminder email"). The engine periodically scans domain
// state for entities inside a trigger's firing window, guarantees each
// (automation, entity) pair fires at most once, renders templated
// action content, and records an auditable execution history.
//
// Architecture:
//
//	┌─────────────────────────────────────────────────────────┐
//	│                 Engine (engine.go)                       │
//	│  RunScan: one pass over all configured triggers          │
//	│  ┌──────────────┐       ┌──────────────┐                │
//	│  │   Scanner    │──────▶│  Dispatcher  │                │
//	│  │ (scanner.go) │       │(dispatcher.go)│               │
//	│  └──────────────┘       └──────────────┘                │
//	│        │                       │                         │
//	│        ▼                       ▼                         │
//	│  ┌──────────────────────────────────────────────┐       │
//	│  │  Dispatch Pipeline (per candidate)            │       │
//	│  │  1. Load automation (skip if gone/inactive)   │       │
//	│  │  2. Re-check dedup gate via Ledger            │       │
//	│  │  3. Build payload, render templates           │       │
//	│  │  4. Execute first action via Registry         │       │
//	│  │  5. Record outcome, update stats on success   │       │
//	│  └──────────────────────────────────────────────┘       │
//	└─────────────────────────────────────────────────────────┘
//
// # Key Types
//
//   - Automation: owner-managed rule (trigger type + ordered actions)
//   - TriggerCandidate: one (automation, entity) pair eligible to fire
//   - ExecutionRecord: append-only audit row, the dedup source of truth
//   - Engine: entry point exposing RunScan
//
// # Deduplication
//
// At most one success record may exist per (automation_id, entity_id).
// The ledger enforces this with a partial unique index, so the
// check-and-write is an atomic insert-if-absent rather than a racy
// read followed by a write. Failure records never block retries.
//
// # Thread Safety
//
// RunScan is safe to call repeatedly and concurrently; overlapping
// passes may attempt the same candidate but the ledger constraint
// keeps the success invariant intact.
//
// # Usage
//
//	repo := automation.NewSQLiteRepository(db)
//	ledger := automation.NewSQLiteLedger(db)
//	registry := automation.NewRegistry(mailer)
//	scanner := automation.NewScanner(store, repo, ledger, triggers)
//	dispatcher := automation.NewDispatcher(repo, ledger, registry, store, timeout)
//
//	engine := automation.NewEngine(scanner, dispatcher)
//	engine.SetLogger(log)
//	summary, err := engine.RunScan(ctx)
package automation
