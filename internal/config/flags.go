package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/shopsync/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-d string   path to the local SQLite database file
//	-t string   DynamoDB table holding the remote collections
//	-r string   AWS region
//	-e string   AWS endpoint override (local stacks)
//	-i int      sync interval in seconds
//	-l string   comma-separated tracked collections
//
// The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-d", "-t", "-r", "-e", "-i", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "path to the local database file")
	fs.StringVar(&cfg.DynamoTable, "t", cfg.DynamoTable, "remote DynamoDB table name")
	fs.StringVar(&cfg.AWSRegion, "r", cfg.AWSRegion, "AWS region")
	fs.StringVar(&cfg.AWSEndpoint, "e", cfg.AWSEndpoint, "AWS endpoint override")
	syncInterval := fs.Int("i", int(cfg.SyncInterval.Seconds()), "sync interval (in seconds)")
	collections := fs.String("l", "", "comma-separated tracked collections")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.SyncInterval = time.Duration(*syncInterval) * time.Second
	if *collections != "" {
		cfg.Collections = strings.Split(*collections, ",")
	}
}
