// Package services wraps the Spotify Web API.
//
// [SpotifyClient] issues one request per operation (one per page for paginated listings) with the bearer token
// held by a [session.Store]. It never refreshes tokens itself: an expired session fails fast with
// [shared.ErrTokenExpired] before any request is sent, and callers decide whether to refresh and retry.
//
// Non-2xx responses are logged with their body and mapped onto the sentinel errors in the shared package:
//
//	401 -> ErrTokenExpired
//	404 -> ErrNotFound
//	429 -> ErrRateLimited
//	*   -> ErrAPIRequest
//
// Requests are paced by a [rate.Limiter]; nothing is retried.
package services
