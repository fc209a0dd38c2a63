// Package ws streams run results to dashboards over WebSocket.
//
// Hub.Run pushes the store snapshot on a fixed interval; Hub.Publish pushes
// one completed run immediately. Every frame is an envelope:
//
//	{"event": "snapshot", "data": { /* GET /api/v1/snapshot */ }}
//	{"event": "run",      "data": { /* one run, without records */ }}
//
// Clients may send {"action": "snapshot"} to request a snapshot out of band.
// The server mounts the hub at /ws/stream.
package ws
