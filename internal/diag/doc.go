// Package diag defines the diagnostic model shared by the instrumentation
// phases.
//
//   - Provide deterministic, serialisable data structures that capture
//     findings produced by the reifier, the liveness repairer and the driver.
//   - Offer light-weight utilities (Reporter, Bag) that let producers emit
//     diagnostics without coupling to concrete storage or formatting layers.
//
// Diagnostic is the central record. It contains:
//
//   - Severity – tri-level enum (Info, Warning, Error) defined in severity.go.
//   - Code – compact numeric identifier (see codes.go) with stable string form.
//   - Message – human oriented text; keep it short and actionable.
//   - Locus – the function (and, when known, source line) the finding refers
//     to. Instrumentation works on lowered IR, so a locus is coarser than a
//     source span.
//
// Instrumentation is best-effort: errors reported here never abort the
// rewrite of other functions. Only a missing main routine or an unwritable
// Type Table are terminal, and those are surfaced by the driver itself.
package diag
