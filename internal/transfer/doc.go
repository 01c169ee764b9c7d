// Package transfer provides the remote stores history files are exchanged
// through: a local or shared directory, S3 or an S3-compatible service, and
// an in-memory store for tests.
package transfer
