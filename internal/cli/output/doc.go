// Package output renders condkv-cli results as a table, JSON or YAML.
//
// Tables are built from slices of structs (one row per element, one column
// per tagged field), from maps (KEY/VALUE rows sorted by key) or from a
// single struct (FIELD/VALUE rows). Spinner shows activity on stderr
// while a command blocks.
package output
