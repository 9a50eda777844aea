// Package logger provides structured logging for flowkit using zerolog.
//
// Loggers are created from a Config (level, format, output) and carry
// structured fields as map[string]interface{}. The engine tags its records
// with the keys in fields.go so a run can be followed by processor, channel
// and phase.
//
// # Configuration
//
//	logging:
//	  level: "debug"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("flow")
//	log.Debug("dispatch", logger.Fields(logger.FieldChannel, "success"))
package logger
