// Package config loads CareBridge service configuration from environment
// variables.
//
// The role catalog and the permission rule table are deliberately NOT
// configurable here: both are compiled into the binary so that a config
// change can never escalate privileges at runtime.
package config
