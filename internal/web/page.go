package web

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/rs/zerolog/hlog"
)

// DefaultBarcode prefills the barcode field.
const DefaultBarcode = "8801062628479"

//go:embed assets/index.html
var assets embed.FS

var pageTemplate = template.Must(template.ParseFS(assets, "assets/index.html"))

type pageData struct {
	DefaultBarcode string
}

func handlePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, pageData{DefaultBarcode: DefaultBarcode}); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to render page")
	}
}
