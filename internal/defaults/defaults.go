// Package defaults provides embedded copies of the default
// configuration and persona files for the ada init subcommand.
package defaults

import _ "embed"

//go:embed config.example.yaml
var ConfigYAML []byte

//go:embed persona.example.md
var PersonaMD []byte
