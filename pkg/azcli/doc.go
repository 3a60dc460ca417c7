// Package azcli executes cloud CLI commands under a global concurrency
// ceiling. Submissions beyond the ceiling wait in a strict-FIFO queue; each
// admitted request runs with bounded retries and a per-attempt timeout, and
// can be cancelled through its context whether queued or running. Batch
// helpers fan many logical operations out through the shared scheduler and
// collect per-item outcomes without letting one failure abort the rest.
package azcli
