// Package config loads the tool settings file. Settings cover snapshot
// endpoints, the local cache, resolver concurrency, policy paths, and
// telemetry. Descriptors themselves are CUE and live in pkg/descriptor;
// this package only concerns shellforge's own configuration.
package config
