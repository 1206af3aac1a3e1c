// Package api holds the HTTP/JSON schema of a powmesh node and a typed client
// for it. The server side lives in internal/api.
package api
