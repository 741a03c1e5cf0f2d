// Package gateway serves the sigil authentication API over HTTP.
//
// # Overview
//
// New builds every component from a config.Config: the signature scheme,
// the principal store (in-memory or SQLite), the challenge manager, the
// optional session token machinery, and Prometheus metrics. Run listens on
// server.http_addr until its context is canceled, then shuts down.
//
// # Routes
//
//	GET  /api/scheme            scheme name and public parameters
//	POST /api/register          {"principal_id"} -> 201 with public and secret key
//	POST /api/enroll            {"principal_id","public_key"} -> 201
//	GET  /api/challenge         ?principal_id= -> 200 {"challenge_id","challenge","expires_at"}
//	POST /api/login             {"principal_id","signature"} -> 200 {"message","token"}
//	GET  /api/principals        public metadata for every principal
//	GET  /api/principals/{id}   public metadata for one principal
//	GET  /api/session           bearer token required
//	POST /api/logout            bearer token required, 204
//	GET  /health, /health/ready
//	GET  /metrics               when metrics.enabled
//
// Keys, challenges, and signatures are base64 strings in JSON. Errors are
// {"error": "..."} with these statuses:
//
//	invalid input               400
//	principal already exists    409
//	principal not found         404
//	no outstanding challenge    400
//	invalid signature           401
//	rate limited                429
//
// The gateway never stores secret keys and has no signing route; clients
// sign challenges themselves (see internal/client).
package gateway
