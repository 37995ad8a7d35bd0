// Package version contains information on the current version of the program.
// It is split from the main program for easy use.
package version

// Current is the string representing the current version of the campman
// console.
const Current = "0.4.0"

// DevServerCurrent is the string representing the current version of the
// campman development backend.
const DevServerCurrent = "0.4.0"
