// Package api serves the JSON HTTP API under /api.
//
// Everything except sign-up and sign-in needs an "Authorization: Bearer"
// token obtained from POST /api/auth/signin. Errors are JSON objects with an
// "error" field; validation failures add a "fields" map.
package api
