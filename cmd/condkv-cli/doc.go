// Command condkv-cli is the command-line client for condkv.
//
// Usage:
//
//	condkv-cli register -u alice -p secret
//	condkv-cli -u alice -p secret put greeting hello
//	condkv-cli -u alice -p secret -o json mget greeting other
//	condkv-cli -u alice -p secret getwhen result status done
//	condkv-cli -u alice -p secret shell
package main
