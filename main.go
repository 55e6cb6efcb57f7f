// The main package for the harvester executable.
//
// Run `harvester crawl` to resume the configured job until it is complete,
// `harvester round` for a single round, `harvester status` to inspect the
// cursor, and `harvester export` to write the collected records as Zotero
// RDF. Configuration comes from --config and HARVESTER_* environment
// variables; SIGINT or SIGTERM abandon the round in flight without
// persisting it.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/JakeFAU/archive-harvester/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := cmd.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
