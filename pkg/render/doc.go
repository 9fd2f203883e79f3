// Package render serializes dom trees to HTML.
//
// The renderer produces the first paint of a live page and the static
// printable page. With hydration enabled every element carries its
// data-hid attribute and a data-on-<event> marker per listener, which is
// what the thin client binds to before the WebSocket snapshot arrives.
//
// # Basic Usage
//
//	r := render.NewRenderer(render.Config{Hydrate: true})
//	html, err := r.RenderToString(doc.Root())
//
// # Full Page Rendering
//
//	err := r.RenderPage(w, render.Page{
//	    Title:        "Cash Sale",
//	    Lang:         "th",
//	    Body:         doc.Root(),
//	    SessionID:    sess.ID,
//	    ClientScript: "/client.js",
//	})
//
// Attributes are written in sorted order so output is deterministic.
package render
