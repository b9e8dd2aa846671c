// Package config loads runtime configuration for the fieldrec client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// # JSON schema
//
// Intervals use timex.Duration, so values can be strings like "3s" or
// integer nanoseconds:
//
//	{
//	  "base_url": "https://api.example.com/api",
//	  "pais": "PE",
//	  "variant_countries": ["PE"],
//	  "audio_storage": "http",
//	  "storage_endpoint": "https://storage.example.com/upload",
//	  "fetch_timeout": "10s",
//	  "online_check_interval": "3s",
//	  "purge_before_send": false
//	}
//
// Environment variables are not read.
package config
