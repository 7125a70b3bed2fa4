// Package transport performs the HTTPS request to the credentials endpoint.
//
// NewMTLS builds a client that authenticates with a device certificate and
// trusts only the configured CA. Get returns whatever status and body the
// server sent; classifying them is left to the caller.
package transport
