// Package api groups the built-in endpoints served by the gatewire CLI.
//
// # Endpoints
//
//	GET  /healthz   liveness probe
//	GET  /readyz    readiness probe, runs registered checks
//	GET  /version   build information
//	POST /echo      echoes the request body
//
// Every endpoint is a types.Handler registered on the gatewire router, so
// it is served over HTTP/1.1 and HTTP/2 alike.
package api
