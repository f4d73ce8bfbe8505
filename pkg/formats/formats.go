// Package formats reads the binary formats the exporter produces through
// external converters, so their output can be checked against what the
// exporter asked for.
package formats
