// Package config loads the YAML configuration of a harvest run.
//
// Environment variables are substituted before parsing with ${VAR_NAME} and
// ${VAR_NAME:-fallback}. Load decodes onto the value it is given, so
// starting from Default() keeps every default the file does not override:
//
//	cfg := config.Default()
//	if err := config.Load("harvest.yaml", cfg); err != nil {
//		return err
//	}
//	cfg.ApplyDefaults()
//	if err := cfg.Validate(); err != nil {
//		return err
//	}
//
// A minimal file:
//
//	module:
//	  foreach: Tracks
//	  contact: ${HARVEST_CONTACT:-nobody@example.org}
//	refiners:
//	  - kind: histograms
//	    groupby: [{column: is_matched}]
//	  - kind: tree
package config
