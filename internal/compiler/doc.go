// Package compiler turns declarative CUE module definitions into module
// builders.
//
// A definition file declares one or more modules under the top-level
// "module" field:
//
//	module: Market: {
//		futures: [
//			{kind: "value", id: "fee", value: 250},
//			{kind: "deploy", artifact: "MarketCore", args: [{ref: "Price.model"}, {ref: "fee"}]},
//			{kind: "call", target: "MarketCore", method: "setOwner", args: [{param: "owner"}]},
//		]
//		outputs: core: "MarketCore"
//	}
//
// Futures are declared in list order. An argument is a literal, a
// reference ({ref: "id"} for a future declared earlier in the same module,
// {ref: "Module.output"} for another module's output) or a run parameter
// ({param: "name", default: v}). Parameters come from a YAML file keyed by
// module name.
package compiler
