// Package errors provides standardized error handling patterns for the GEDI
// data store plugin.
//
// # Overview
//
// The errors package implements a three-class error classification system:
// Transient (temporary, retryable), Invalid (bad input, non-retryable), and
// Fatal (unrecoverable, stop processing).
//
// This classification lets the provider client, the store, and the gateway
// make informed decisions about retries and failure handling without
// hardcoded error string matching. It integrates with Go's standard error
// handling patterns, supporting errors.Is(), errors.As(), and wrapping.
//
// # Error Classification
//
//   - Transient: network timeouts, provider unavailability, rate limiting
//     (retry recommended)
//   - Invalid: unknown data IDs, unknown variables, malformed parameters,
//     bad configuration (do not retry)
//   - Fatal: unrecoverable configuration or startup states (stop processing)
//
// # Quick Start
//
// Return standard error variables for known conditions:
//
//	if !known(dataID) {
//	    return errors.ErrUnknownDataID
//	}
//
// Wrap errors with component context:
//
//	if err := provider.GetData(ctx, query); err != nil {
//	    return errors.WrapTransient(err, "GediStore", "OpenData", "provider query")
//	}
//
// Check classification for retry logic:
//
//	if errors.IsTransient(err) {
//	    // schedule retry
//	}
package errors
