// Package schemadoc reads and writes the schema file of a mirrored database.
//
// The format is a small, line-oriented subset of YAML that this package
// writes itself and reads back without a general-purpose YAML parser:
//
//	id: "db-1"
//	title: "Tasks"
//	updatedAt: "2026-01-02T03:04:05Z"
//	dataSources: []
//	properties:
//	  - id: "p1"
//	    name: "Status"
//	    type: "select"
//	    dataSourceId: null
//	    sortOrder: 0
//	    config:
//	      options: [{"id":"o1","name":"Todo"}]
//
// Strings are always double-quoted with backslash, quote and newline escaped.
// Numbers, booleans and null are bare. Composite config values are inline JSON.
// Empty collections are written as [] and an empty config as {}.
//
// Parse is total: malformed input yields an absent document (ok == false),
// never an error. Parse(Serialize(d)) reproduces d field for field.
package schemadoc
