// Package records maps mirrored records onto the local directory tree.
//
// Layout under the root directory:
//
//	<root>/<collection>/<slug>/schema.yaml   database schema
//	<root>/<collection>/<slug>/data.csv      database rows
//	<root>/<collection>/<slug>.md            page (YAML front matter + body)
//
// Directories whose name starts with a dot are never treated as collections
// or records; the tool keeps its own state under <root>/.mirror.
//
// Reads are lenient: a record that is missing or fails to parse is absent,
// and listings skip it and report it in Listing.Skipped instead of failing.
// Every file is written through a temporary file and a rename.
package records
