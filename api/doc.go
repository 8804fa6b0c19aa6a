// Package api defines the HTTP request and response contracts for the
// RAG Fortress retrieval service.
//
// # API Overview
//
// RAG Fortress exposes a RESTful API for:
//   - Security-aware adaptive retrieval (POST /api/v1/query)
//   - Response-tier cache lookup and population (/api/v1/responses)
//   - Document ingestion into the vector store (POST /api/v1/documents)
//   - Cache administration (POST /api/v1/cache/clear)
//   - Health monitoring (/health, /healthz, /ready) and metrics (/metrics)
//
// # Authentication
//
// When auth is enabled, endpoints require a JWT bearer token whose claims
// carry the requester's clearance profile:
//
//	Authorization: Bearer <token>
//
// Claims: org_level (number), department_id (string, optional),
// department_level (number, required with department_id).
//
// When auth is disabled the security context is read from the request
// body, which is only acceptable on trusted internal networks.
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
package api
