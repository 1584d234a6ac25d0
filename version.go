// Package tally holds project-wide metadata for the tally command.
package tally

// Version is the current release of tally.
const Version = "v0.1.0"
