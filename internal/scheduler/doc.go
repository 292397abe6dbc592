// Package scheduler runs checkpoint acquisitions on a bounded pool of workers.
//
// Every worker opens one acquisition session when it starts and keeps it
// until the shared queue is empty. Jobs are taken from the front of a
// mutex-guarded deque. A failed job that still has retries left goes back to
// the FRONT of the deque, so it is retried before any other pending job; once
// its retries are exhausted it is recorded as a permanent failure and the run
// continues. Run returns only after every job reached a terminal outcome and
// every session was closed. Permanent failures are reported together as an
// *AggregateAcquisitionFailure without undoing the jobs that succeeded.
package scheduler
