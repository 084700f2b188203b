// Package web embeds the static front-end document served on GET /.
package web

import _ "embed"

//go:embed index.html
var Index []byte
