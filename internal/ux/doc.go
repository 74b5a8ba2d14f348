// Package ux keeps what the interactive client remembers between runs: the
// last challenge type the user worked on and how their attempts went per
// type.
//
// Preferences live in a small JSON file next to the config. Nothing here
// blocks the session; a file that cannot be written is logged and ignored.
package ux
