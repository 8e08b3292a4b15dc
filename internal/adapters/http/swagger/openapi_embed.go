package swagger

import _ "embed"

// OpenAPI is the scoring API description served at /openapi.yaml.
//
//go:embed openapi.yaml
var OpenAPI []byte
