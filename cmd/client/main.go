// Package main runs the BranchLift terminal client. State is kept in a local
// JSON file, one key per persisted collection.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/atinyakov/BranchLift/internal/client/shell"
	"github.com/atinyakov/BranchLift/internal/kv"
	"github.com/atinyakov/BranchLift/internal/logger"
	"github.com/atinyakov/BranchLift/internal/lookup"
	"github.com/atinyakov/BranchLift/internal/service"
)

var (
	version   string
	buildDate string
)

// main parses command-line flags and starts the interactive shell.
func main() {
	var (
		storePath string
		githubURL string
		logLevel  string
		logFile   string
		showVer   bool
	)

	flag.StringVar(&storePath, "store", "branchlift.json", "path to the local state file")
	flag.StringVar(&githubURL, "github", lookup.DefaultBaseURL, "GitHub API base URL")
	flag.StringVar(&logLevel, "log-level", "error", "log level")
	flag.StringVar(&logFile, "log-file", "", "write logs to this file")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("BranchLift Client\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		return
	}

	lg := logger.New()
	if err := lg.Init(logLevel, logger.WithFile(logFile)); err != nil {
		log.Fatal(err)
	}
	defer func() { _ = lg.Log.Sync() }()

	store, err := kv.OpenFile(storePath)
	if err != nil {
		log.Fatal(err)
	}

	sessions := service.NewSessionStore(store, nil, lg.Log.Named("session"))
	workspace := service.NewWorkspace(store, sessions, service.WorkspaceConfig{
		Lookup: lookup.NewGitHub(githubURL, lookup.DefaultTimeout),
		Log:    lg.Log.Named("workspace"),
	})
	defer workspace.Reset()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	sh := shell.New(sessions, workspace, os.Stdin, os.Stdout, lg.Log)
	if err := sh.Run(ctx); err != nil {
		log.Fatal(err)
	}
}
