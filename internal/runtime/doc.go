// Package runtime invokes downstream agent runtimes and classifies their
// failures.
//
// Every failure of Invoke is exactly one of:
//
//   - TimeoutError: no answer within the timeout, or the caller cancelled
//   - FaultError: the runtime answered with an error status or fault payload
//   - UnreachableError: the runtime could not be reached at all
//
// Timeouts and unreachable runtimes are safe to retry (IsRetryable); faults
// are not. Invoke itself never retries.
package runtime
