package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/newsplatform/sessiond/internal/authctl"
	"github.com/newsplatform/sessiond/internal/server/config"
)

func main() {
	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := authctl.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	os.Exit(app.Run(ctx, commandArgs(os.Args[1:])))
}

// commandArgs strips configuration flags, leaving the subcommand and its
// positional arguments.
func commandArgs(args []string) []string {
	var out []string
	for i := 0; i < len(args); i++ {
		if strings.HasPrefix(args[i], "-") {
			if !strings.Contains(args[i], "=") {
				i++
			}
			continue
		}
		out = append(out, args[i])
	}
	return out
}
