// Package logging implements the execution log.
//
// A [Log] appends one timestamped line per event to a file under the working
// directory and mirrors the same message to the operator's console, colored by
// level when the console is a terminal. The file receives every level; the
// console shows DEBUG only in verbose mode. The pipeline never reads the file
// back.
//
// Subprocess output is streamed into the log at DEBUG through [Log.Writer],
// and [Log.Logr] adapts the log to go-logr for library code.
package logging
