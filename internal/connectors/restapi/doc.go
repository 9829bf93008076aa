// Package restapi holds the HTTP plumbing shared by the REST connectors:
// a basic-auth JSON client, a header-aware rate limiter and typed API errors.
package restapi
