// Package config holds the run configuration of ballotharvest and loads
// named profiles from a .ballotharvest YAML file.
package config
