// Package auth provides API key authentication for the REST API.
//
// APIKey returns HTTP middleware that checks the configured header on every
// request. When mode is not "apikey", or the key is empty, all requests pass
// through unchanged. A missing or wrong key is answered with 401 and a JSON
// error body.
//
// The server wraps both /api/ and /ws/stream. Browsers cannot set headers on
// a WebSocket upgrade, so upgrade requests may pass the key as ?api_key=.
package auth
