// Package peer exposes a remote store over gRPC so a machine can use another
// machine as its remote, and provides the matching client.
//
// The versync.History service has three unary methods, List, Read and Write,
// mirroring transfer.Backend. Messages are plain structs encoded with the
// protobuf wire format by a codec forced on both ends, so no generated code
// is involved.
package peer
