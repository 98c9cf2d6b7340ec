// Package token signs and verifies continuation tokens: short-lived JWS
// claim sets that carry an account's identity, a [Purpose] tag and an
// optional expected version from the first step of a flow to its next step.
//
// A token verifies only for the purpose it was signed with. Version checks
// against stored state are left to the caller.
package token
