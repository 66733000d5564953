// Package harness runs event tracing scenarios.
//
// A scenario is a YAML file with a scripted feed and a list of assertions:
//
//	name: dish_startup
//	description: Dish reports ON after slewing
//	feed:
//	  initial:
//	    - {source: sys/dish/1, attribute: state, value: STANDBY}
//	  steps:
//	    - {at: 200ms, source: sys/dish/1, attribute: state, value: ON}
//	within: 2s
//	assertions:
//	  - type: state_change
//	    attribute: state
//	    value: ON
//	    previous: STANDBY
//
// Run subscribes a fresh tracer to the feed, plays it, and evaluates the
// assertions in order while it plays. All assertions share the within
// budget, so a slow first assertion leaves less time for the rest.
//
// A failed assertion renders as an AssertionError: what was expected, what
// happened, the query description and the full event trace.
//
// Golden files (testdata/golden) pin the outcome of a scenario: assertion
// statuses, matched sequence numbers and the labelled events, without
// reception times.
package harness
