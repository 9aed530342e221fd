// Package buildinfo reports the version of the running condkv binary.
package buildinfo
