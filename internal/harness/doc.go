// Package harness runs YAML lifetime scenarios against the reference graph
// simulator.
//
// A scenario is a script of steps (open and close scopes, create objects,
// set and clear fields, release references, read fields) followed by
// assertions over the final state and the event trace. Runs are
// deterministic: the clock starts at 1 and the run token is fixed, so a
// scenario's trace can be compared byte-for-byte against a golden file.
//
// Objects are named by alias in the scenario and in the resulting trace:
//
//	steps:
//	  - create: b
//	    class: ModelB
//	  - create: a1
//	    class: ModelA1
//	  - set: a1.modelB
//	    to: b
//	  - release: b
//	  - read: a1.modelB
//	    expect: {empty: true}
//
// A fatal runtime error (a dangling unowned read) halts the scenario, the
// way it would terminate a real program. Remaining steps are skipped.
package harness
