// Package server implements the HTTP surface of the tardrop receiver.
//
// The surface is deliberately tiny: POST with a Content-Length delivers a
// gzip tar archive to the deployment engine, and every read request is
// rejected uniformly — the receiver exposes no query capability over the
// network. Responses are plain text and carry no error detail beyond a
// generic failure indicator.
//
// The receiver is unauthenticated and intended for loopback use only;
// rate limiting and request logging are the only middleware applied.
package server
