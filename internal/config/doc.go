// Package config loads host configuration files written in CUE.
//
// A configuration file is unified with the embedded schema (schema.cue),
// which supplies defaults and rejects unknown fields:
//
//	host: {
//		frame_rate:       30
//		shutdown_timeout: "2s"
//		scripts_location: "/usr/share/scripthost/scripts"
//		cache_db:         "cache.db"
//	}
//	entities: {
//		"0190a3f2-7c4e-7d1a-9b2c-3e4f5a6b7c8d": "file:///srv/scripts/door.js"
//	}
package config
