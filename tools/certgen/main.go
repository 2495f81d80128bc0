// Package main writes a self-signed server certificate and key for running
// the BranchLift server over HTTPS locally.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/atinyakov/BranchLift/internal/certgen"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("certgen", flag.ContinueOnError)
	dir := fs.String("dir", "certs", "output directory")
	hosts := fs.String("hosts", "localhost,127.0.0.1", "comma-separated DNS names and IPs")
	days := fs.Int("days", 365, "validity in days")
	if err := fs.Parse(args); err != nil {
		return err
	}

	certPEM, keyPEM, err := certgen.GenerateServerCertificate(strings.Split(*hosts, ","), time.Duration(*days)*24*time.Hour)
	if err != nil {
		return err
	}
	certPath, keyPath, err := certgen.WriteFiles(*dir, certPEM, keyPEM)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Certificates generated into %s\nRun the server with -cert %s -key %s\n", *dir, certPath, keyPath)
	return nil
}
