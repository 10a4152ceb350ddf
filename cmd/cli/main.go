package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/gophsocial/internal/client/cli"
	"github.com/dmitrijs2005/gophsocial/internal/client/config"
)

func main() {

	ctx := context.Background()
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	cli.NewApp(cfg).Run(ctx)

}
