package tendril

// Version is the release of the module, reported by the CLI and the HTTP API.
var Version = "0.1.0"
