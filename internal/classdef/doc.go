// Package classdef compiles CUE class definitions into ClassSpecs.
//
// A class declares named fields, each holding one reference of a fixed kind
// to an object of a named class:
//
//	class: Student: {
//		description: "owns its card"
//		fields: card: {kind: "strong", type: "StudentCard"}
//	}
//	class: StudentCard: fields: student: {kind: "unowned", type: "Student"}
//
// Definitions are checked against a closed CUE schema, so misspelled keys
// and unknown kinds are reported with their source positions.
package classdef
