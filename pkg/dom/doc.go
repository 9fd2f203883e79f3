// Package dom provides the retained document tree for billform.
//
// The tree mirrors the browser DOM of a connected client. It lives on the
// server, is mutated by components and the keyed reconciler, and records
// every mutation of the connected part of the tree in a journal of Patch
// values. The session drains the journal after each flush and ships the
// patches to the client.
//
// # Core Types
//
// Node is an element or a text node. Document owns the root element, the
// hydration ID generator, the HID index used for event dispatch, and the
// patch journal.
//
// # Journalling
//
// Only mutations of nodes reachable from the document root produce
// patches. A subtree built while detached is sent whole by the InsertNode
// patch that connects it, as a Snapshot taken at insertion time:
//
//	row := doc.Element("tr")
//	doc.Append(row, doc.Text("a"))   // detached, nothing journalled
//	doc.InsertBefore(tbody, row, nil) // InsertNode with the full row
//	doc.SetText(cell, "b")            // SetText
//
// A node that is already connected and is inserted again is moved, which
// journals a MoveNode patch instead of an InsertNode.
package dom
