// Package auth provides bearer-token authentication for the collaborator
// HTTP API.
//
// Tokens are HS256 JWTs carrying a subject and a role. Roles map statically
// to permissions, so checking a request needs no database lookup:
//
//	reader  registry:read, events:subscribe
//	admin   everything reader has, plus audit:read
//
// Tokens are issued out of band (lwm2md -issue-token) and verified by
// signature and expiry only.
package auth
