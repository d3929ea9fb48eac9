// Package config loads the main night-watch configuration file and parses
// the period literals used throughout task definitions.
//
// The main configuration is a YAML document with two sections: "logging"
// (log level and output format) and "config" (locations of the task,
// provider and action definition directories, plus the optional control API
// settings). The three definition locations are mandatory; loading fails
// without them.
package config
