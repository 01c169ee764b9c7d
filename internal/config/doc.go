// Package config loads the YAML configuration of a versync repository and
// parses the machine=path source lists taken by the CLI.
package config
