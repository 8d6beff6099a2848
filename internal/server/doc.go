// Package server provides HTTP routing, middleware, the OAuth callback handler and the local JSON API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses a chi mux internally. Middleware is applied per route when it is
// registered, so [BasicRouter.Use] only affects routes added afterwards.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the redirect leg of the authorization code flow.
//
// The handler validates the state parameter (CSRF protection), exchanges the authorization code through
// the supplied [ExchangeFunc], and sends the result through a channel.
//
// It only processes one callback to prevent replay attacks.
//
// # Local API
//
// [APIHandler] exposes the Spotify client and the session store as JSON:
//
//	GET  /me
//	GET  /top/{kind}?range=&limit=
//	GET  /devices
//	POST /play                      {"type": "artist|track", "id": "..."}
//	GET  /playlists
//	GET  /playlists/{id}/tracks?q=
//	GET  /session
//	POST /session/refresh
//
// Errors are returned as {"error": "..."} with a status derived from the wrapped sentinel
// (see [StatusFor]).
package server
