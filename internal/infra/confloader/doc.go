// Package confloader loads configuration into koanf-tagged structs.
//
// Sources, lowest priority first:
//
//  1. Defaults: the values already present in the target struct
//  2. A YAML configuration file
//  3. Environment variables (CONDKV_ prefix)
//
// Watcher reports changes to the configuration file so that a server can
// re-read the settings that are safe to change at runtime.
package confloader
