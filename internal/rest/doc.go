// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package rest exposes the passkey ceremony service over HTTP.
//
// # API Endpoints
//
// Registration ceremony:
//   - POST /v1/attestation/request - Issue a registration challenge
//   - POST /v1/attestation/response - Verify the attestation and mint a token
//
// Sign-in ceremony:
//   - POST /v1/assertion/request - Issue an authentication challenge
//   - POST /v1/assertion/response - Verify the assertion and mint a token
//
// Health and observability:
//   - GET /health - Legacy health check
//   - GET /health/live, /health/ready, /health/startup - Kubernetes probes
//   - GET /metrics - Prometheus metrics (when enabled)
//
// # Caller Identification
//
// Every ceremony request carries the caller's opaque installation token in
// the X-Instance-Token header. Requests from signed-in callers may also
// carry a session token in the Authorization header (Bearer scheme); when
// present and valid, new credentials registered by the caller bind to that
// account instead of a fresh anonymous one.
//
// # Error Handling
//
// The server returns standard HTTP status codes:
//   - 200 OK - Request successful
//   - 400 Bad Request - Missing or malformed wire fields, stale challenge
//   - 401 Unauthorized - Missing identity or rejected ceremony proof
//   - 404 Not Found - No registered credentials / unknown credential
//   - 409 Conflict - Credential id already registered
//   - 429 Too Many Requests - Rate limit exceeded
//   - 500 Internal Server Error - Server error
//
// Error responses include a JSON body with error details:
//
//	{
//	  "error": "assertion verification failed",
//	  "code": 401
//	}
package rest
