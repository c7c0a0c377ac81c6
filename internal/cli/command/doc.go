// Package command defines the sessfile command-line tool.
//
// Every command loads the operator configuration (file, then SESSFILE_*
// environment, then flags), opens the session directory with the same
// filestore the application uses, and prints results through the
// output formatters.
package command
