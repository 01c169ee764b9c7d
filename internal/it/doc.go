// Package it holds integration tests that run several machines against a
// shared history hub over real gRPC connections.
package it
