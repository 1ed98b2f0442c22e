package api

import (
	"embed"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"
)

// Embedded UI assets.
//
// The build process copies the web UI production build output into
// internal/api/dist/browser/ before compiling Go. A placeholder
// index.html is checked in so the embed never fails.
//
//go:embed dist/browser/*
var embeddedUI embed.FS

func getEmbedFs() static.ServeFileSystem {
	fs, err := static.EmbedFolder(embeddedUI, "dist/browser")
	if err != nil {
		panic("failed to get embedded UI filesystem: " + err.Error())
	}
	return fs
}

// MountSPA serves the embedded UI on /, falling back to index.html for
// client-side routes. API and metrics paths are never rewritten.
func MountSPA(r *gin.Engine, logger *slog.Logger) {
	distFS := getEmbedFs()
	r.Use(static.Serve("/", distFS))

	r.NoRoute(func(c *gin.Context) {
		uri := c.Request.RequestURI
		if strings.HasPrefix(uri, "/api") || strings.HasPrefix(uri, "/metrics") {
			return
		}
		index, err := distFS.Open("index.html")
		if err != nil {
			if logger != nil {
				logger.Error("failed to open index.html", "error", err)
			}
			return
		}
		defer index.Close()
		stat, _ := index.Stat()
		http.ServeContent(c.Writer, c.Request, "index.html", stat.ModTime(), index)
	})
}
