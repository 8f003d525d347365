// Package pipeline builds the identifier cache for a range of tokens.
//
// A Builder enumerates the numbers of one token level, derives each
// token's content, and asks an Addresser for its identifier on a bounded
// pool of workers. Results flow through a bounded queue to exactly one
// writer goroutine, which batches them into the store.
//
//	producer ──numbers──▶ workers (N) ──results──▶ writer (1) ──▶ UpsertBatch
//
// The writer flushes when a batch is full or when the flush interval
// passes with records pending, and always flushes what it holds before
// returning, including when the run is canceled.
//
// Per-item addressing failures are counted and logged; they never stop the
// run. Write failures are counted against the run, and a run aborts with
// ErrStoreUnavailable after MaxWriteFailures consecutive failed batches.
//
// Run states:
//
//	Idle → Enumerating → Draining → Flushing → Done
//
// A Builder runs once. Calling Run again returns ErrAlreadyRun.
package pipeline
