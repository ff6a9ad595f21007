// Package journal persists pipeline run history to a SQLite database.
//
// A Journal implements gobake.RunObserver: attach it to a sequence with
// gobake.WithObserver and every run's state transitions (planned, per-step
// running, completed, failed) are recorded durably and can be queried later.
package journal
