// Package api implements the collaborator HTTP API of the LWM2M server.
//
// This package provides:
//   - Read-only REST endpoints over the client registry
//   - Paginated access to the registration audit trail
//   - A WebSocket hub relaying registration events as they happen
//   - Bearer-token (HS256 JWT) authentication with role permissions
//   - Middleware stack (request ID, logging, recovery, CORS)
//   - TLS support for production deployments
//
// # Architecture
//
// Device Management and Information Reporting services do not talk CoAP to
// the registrar; they read the registry here and follow changes on the
// WebSocket stream (or on MQTT). Nothing in this package mutates the
// registry: registrations change only through the CoAP interface.
//
// # Security
//
// When security.jwt.secret is set every route except /health requires an
// "Authorization: Bearer" token. Browsers that cannot set headers on a
// WebSocket handshake may pass the token in the access_token query
// parameter instead.
package api
