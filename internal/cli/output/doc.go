// Package output renders command results for the sessfile tool.
//
// Results are plain Go values. TableFormatter lays out structs, slices
// of structs and maps with text/tabwriter; JSONFormatter and
// YAMLFormatter emit machine-readable documents for scripting.
//
// Struct fields take their column name from the `table` tag, falling back
// to the json tag and then the field name. A `table:"NAME,wide"` field is
// shown only in wide mode and `table:"-"` hides it.
package output
