// Package internal contains the implementation packages of soyidx.
//
// # Package Organization
//
//   - directive: Extraction of namespace, delpackage, template and
//     deltemplate declarations from file contents, with a memo
//   - cache: Per-module namespace and delegate package caches, their buckets
//     and the store holding both caches of every module
//   - updater: The incremental updater applying file events to the store
//   - changelog: The debug change watcher reporting what changed in the
//     caches once updates settle
//   - workspace: The filesystem host: modules, file handles and walking
//   - watcher: fsnotify based file watching with debouncing
//   - config: Configuration loading and validation
//   - errors: Structured errors for the host boundaries
//   - logging: Structured logging over log/slog
//   - version: Build information
//
// # Data Flow
//
// The workspace lists template files, the updater extracts their
// declarations and replaces each file's entries in its module's caches. The
// watcher turns filesystem events into further updates and removals. With
// debug enabled, the change watcher diffs the caches against its previous
// snapshot and writes a report.
package internal
