// Package webui provides the embedded browser client for luachat serve.
package webui

import "embed"

//go:embed static/index.html
var staticFS embed.FS

// Index returns the client page.
func Index() []byte {
	b, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		// the embed path is fixed above
		panic(err)
	}
	return b
}
