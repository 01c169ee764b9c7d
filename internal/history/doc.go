// Package history reads and writes the files machines exchange through a
// remote store.
//
// Each upload is one immutable file named history-<machine>-<seq>. It holds
// the machine's new branch versions since its previous upload, plus the base
// version they follow. Replaying a machine's files in sequence order rebuilds
// its branch; a file whose base is not the last replayed version cuts the
// branch back to that base first, which mirrors a demotion on the sender.
//
// Files are a 4-byte magic followed by a snappy-compressed protobuf-wire
// message:
//
//	File   { 1: machine string, 2: base Header, 3: repeated Header }
//	Header { 1: owner string, 2: repeated Entry, 3: timestamp int64 }
//	Entry  { 1: machine string, 2: counter int64 }
package history
