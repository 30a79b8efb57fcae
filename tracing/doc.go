// Package tracing turns index decisions and relay state changes into OpenTelemetry spans.
//
// Every hook invocation becomes one short span named after the event ("slotindex.admit",
// "slotindex.watermark", ...) with the decision attached as attributes. Regressions are
// recorded with an error status so they stand out in a trace viewer.
//
// All instrumentation is kept in a separate package so that applications which do not
// require tracing can exclude it from their build.
package tracing
