// Package harness runs memo conformance scenarios.
//
// A scenario names a set of identities, optionally funds them, and then
// drives the memo service through a list of steps. Every scenario runs
// against a fresh in-memory store with a deterministic clock and an event
// recorder, so the resulting trace is byte-identical across runs and can be
// compared against a golden file.
//
// # Scenario Format
//
//	name: close_by_author
//	description: "Only the author can close a memo"
//	identities: [alice, bob]
//	rent: { base_bytes: 128, per_byte: 10 }   # optional, off by default
//	fund: { alice: 10000 }                    # optional
//	steps:
//	  - action: store
//	    as: alice
//	    nonce: 1
//	    text: hello
//	    save: m1
//	  - action: close
//	    as: bob
//	    address: m1
//	    expect: { error: Unauthorized }
//	  - action: load
//	    address: m1
//	    expect: { author: alice, text: hello, nonce: 1 }
//	assertions:
//	  - type: event_count
//	    count: 1
//
// # Step Actions
//
//   - store: create a memo as an identity; text_len fills the text with
//     that many 'a' bytes
//   - close: delete the memo at address as an identity
//   - load: read the memo at address
//   - derive: compute the address of (as, nonce) without storage
//
// An address is either a name saved by an earlier step or a hex pubkey.
// Expected fields are a subset match against the step result; identities
// in results are reported by name.
//
// # Assertion Types
//
//   - event_count: the number of MemoCreated events published
//   - exists: an address holds a memo at the end of the run
//   - absent: an address holds nothing at the end of the run
//   - balance: an identity's deposit balance at the end of the run
package harness
