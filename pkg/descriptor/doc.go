// Package descriptor loads declarative environment descriptors. A
// descriptor is a CUE document naming its source inputs and the outputs
// built from them; the devShell output lists the tools every resolved
// platform provides. Outputs may alternatively be computed by a Starlark
// expression over the declared inputs.
package descriptor
