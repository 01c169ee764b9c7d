// Package cli implements the versync command line: reconciliation of
// scenario files and branch dumps, plus the commands that operate a
// repository configured in versync.yaml.
package cli
