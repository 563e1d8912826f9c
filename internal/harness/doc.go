// Package harness runs deployment scenarios against the engine with a
// scripted transport and an in-memory journal.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: failed_then_wiped
//	description: "A reverted call blocks the module until it is wiped"
//	modules:
//	  - modules/market.cue
//	parameters:
//	  Market: { fee: 300 }
//	runs:
//	  - deploy: Market
//	    script:
//	      - fail_send: Market#MarketCore.setFee
//	        error: execution reverted
//	    expect:
//	      error: EXECUTION_FAILED
//	      failed: Market#MarketCore.setFee
//	  - deploy: Market
//	    wipe: [Market#MarketCore.setFee]
//	    expect:
//	      executed: [Market#MarketCore.setFee]
//	assertions:
//	  - type: trace_order
//	    refs: [Price#PriceModel, Market#MarketCore]
//	  - type: final_state
//	    ref: Market#MarketCore.setFee
//	    expect: { status: confirmed }
//
// # Assertion Types
//
//   - trace_contains: a journal event for ref (with status, when given)
//   - trace_order: refs were first confirmed in the given order
//   - trace_count: exactly count events for ref (and status)
//   - final_state: the journal entry of ref matches expect
//
// # Deterministic Testing
//
// Runs use fixed run ids (run_id-1, run_id-2, ...), the fake transport's
// nonce-derived addresses and hashes, and a fresh in-memory SQLite journal,
// so traces are identical across executions and can be compared against
// golden files.
package harness
