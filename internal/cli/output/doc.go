// Package output renders tokdrop-cli results as a table, JSON or YAML.
//
// Result types implement Tabler to control their table layout; JSON and
// YAML encode the value itself.
package output
