package main

import (
	"context"
	"log"

	"github.com/snapkeeper/snapkeeper/internal/config"
	"github.com/snapkeeper/snapkeeper/internal/server"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
