package schema

import _ "embed"

// ServersV1Schema contains the JSON schema for server manifests.
//
//go:embed servers.v1.json
var ServersV1Schema []byte
