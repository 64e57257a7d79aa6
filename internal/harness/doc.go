// Package harness runs sync scenarios end to end.
//
// A scenario seeds an in-process remote, then drives the real engine
// through pulls, pushes and simulated edits on either side, and finally
// checks the local mirror, the remote and the journal.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: push_status_change
//	description: "A local edit reaches the remote"
//	remote:
//	  databases:
//	    - id: db-1
//	      title: Tasks
//	      collection: work
//	      properties:
//	        - { id: p-status, name: Status, type: select, options: [Todo, Done] }
//	      rows:
//	        - { id: r1, title: Write docs, values: { p-status: Todo } }
//	steps:
//	  - action: pull
//	  - action: edit_row
//	    record: db-1
//	    row: r1
//	    values: { p-status: Done }
//	  - action: push
//	    expect: { db-1: pushed }
//	assertions:
//	  - type: remote_row
//	    record: db-1
//	    row: r1
//	    values: { p-status: Done }
//
// Select options get the id "opt-" followed by the slug of their name.
//
// # Step Actions
//
//   - pull, push: run a full pass, optionally with force
//   - edit_row, add_row, delete_row, edit_page: change the local mirror
//     the way an editor would, leaving sync stamps alone
//   - remote_edit_row, remote_edit_page, remote_remove: change the remote
//   - fail_row: make the remote reject every write of a row
//
// # Assertion Types
//
//   - local_state: the record classifies as synced or modified
//   - local_row, remote_row: a row has the given values, or is absent
//   - row_count: number of rows on one side
//   - local_page, remote_page: page content
//   - stamps_match: both local stamps equal the remote fingerprint
//   - journal_count: number of journal entries with an outcome
//
// # Deterministic Testing
//
// Every run gets a fresh temporary directory, a testutil clock shared by
// the remote and the journal, and sequence generators for local row ids
// and run ids, so traces are stable enough for golden comparison.
package harness
