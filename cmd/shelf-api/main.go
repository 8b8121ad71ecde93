package main

import (
	"context"
	"net/http"
)

func main() {
	app := mustBootstrapShelfAPI()
	defer app.Close()

	if err := app.Run(); err != nil && err != context.Canceled && err != http.ErrServerClosed {
		panic(err)
	}
}
