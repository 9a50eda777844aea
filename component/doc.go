// Package component defines lifecycle-managed parts of a flowkit process.
//
// A running pipeline, the webhook listener feeding it and any other
// long-lived piece implement Component and are registered with a Registry,
// which starts them in registration order and stops them in reverse.
package component
