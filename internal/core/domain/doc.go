// Package domain defines the core domain models for condkv.
//
// Domain models are pure value objects without IO dependencies:
//
//   - Record rules: key and value validation, MULTIPUT/MULTIGET body parsing
//   - Account: a registered user and its session flag
//   - ConnID: the identity of one client connection
//   - Errors: the CKV error code catalogue
package domain
