// Package logging configures the structured logger shared by every
// greenhouse component.
//
// Entries are JSON (or logfmt-style text) with service and version fields
// and UTC timestamps. The logging section of config.yaml selects level,
// format and stream:
//
//	logging:
//	  level: info      # debug | info | warn | error
//	  format: json     # json | text
//	  output: stdout   # stdout | stderr
//
// Components log through a child logger:
//
//	log := logging.New(cfg.Logging, version).Component("ingest")
//	log.Warn("dropping reading", "topic", topic, "error", err)
//
// Broker passwords and database URIs with credentials must not be logged;
// use mongodb.RedactURI for connection strings.
package logging
