// Package config holds the options of a sitecrawl invocation and loads the
// optional YAML run profile (.sitecrawl) that supplies them.
//
// Values are resolved in the order flags, profile, defaults: a profile
// value is used only when the matching flag was not given.
package config
