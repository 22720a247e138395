// Package storage persists fire marks for the due-task selector so a task
// is not fired twice for the same minute, across processes and restarts.
//
// Two backends are provided:
//   - file: JSON snapshot plus an append-only JSON Lines journal
//   - sqlite: a single table in an SQLite database (modernc.org/sqlite)
package storage
