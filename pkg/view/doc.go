// Package view contains the receipt component: the editable document
// rendered into a dom.Document and kept in sync with its receipt.Query.
//
// The component follows the compiled-component pattern. Mount builds the
// tree once; Update patches only what the dirty slots say changed, and the
// three keyed lists (language buttons, document type buttons, item rows) go
// through pkg/reconcile.
package view
