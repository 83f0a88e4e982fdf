// Package web embeds the browser dashboard.
package web

import (
	"embed"
	"io/fs"
)

//go:embed static
var files embed.FS

// Static returns the dashboard assets rooted at the static directory.
func Static() fs.FS {
	sub, err := fs.Sub(files, "static")
	if err != nil {
		// The embed pattern guarantees the directory exists.
		panic(err)
	}
	return sub
}

// Page returns the contents of a top-level HTML page such as "index.html".
func Page(name string) ([]byte, error) {
	return fs.ReadFile(Static(), name)
}
