// The hookserver binary serves the export hook extensions behind the
// functions framework. Deployed as a single function, it routes
// POST /hooks/{name} to the matching extension.
package main

import (
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/wudi/docexport/hook"
	"github.com/wudi/docexport/observability"
)

var (
	once    sync.Once
	handler http.Handler
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleHook", handleHook)
}

func main() {}

func handleHook(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		log := observability.NewSlogLogger(slog.Default())
		registry := hook.NewRegistry(log,
			hook.NewExport(log),
			hook.NewEncrypt(log),
			hook.NewQRBill(log),
			hook.NewBarcodes(log),
		)
		handler = registry.HTTPHandler()
	})
	handler.ServeHTTP(w, r)
}
