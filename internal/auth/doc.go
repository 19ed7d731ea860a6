// Relay - Real-time Event Distribution for Analysis Workloads
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

/*
Package auth authenticates stream and API requests with HMAC-signed JWTs.

Tokens carry the directory user id (Username) and a role. The Middleware reads
the token from, in order:

  - Authorization: Bearer <token>
  - the "token" cookie
  - the "token" query parameter (browser EventSource cannot set headers)

With AUTH_MODE=none every request runs as the anonymous admin. Config
validation refuses that mode in production.

Usage:

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
	    return err
	}
	mw := auth.NewMiddleware(jwtManager, cfg.Security.AuthMode)

	r.Group(func(r chi.Router) {
	    r.Use(mw.Handler)
	    r.Get("/api/v1/stream", streamHandler)

	    r.With(auth.RequireAdmin).Get("/api/v1/admin/sessions", listSessions)
	})

Revoking a token does not end an open stream; use the admin revoke endpoint,
which invalidates the registry session.
*/
package auth
