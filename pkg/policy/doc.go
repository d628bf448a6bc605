// Package policy evaluates Rego policies against environment
// descriptors before resolution. Built-in policies cover pinning,
// build-input allowlists, and descriptor hygiene; additional policies
// load from .rego or .json files.
package policy
