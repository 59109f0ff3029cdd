// Command casecore is the operational CLI for the case/form processing
// backend: archive and unarchive forms, replay recorded system actions,
// reconcile interrupted archives, and inspect ledgers.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "--help", "-h", "help":
		printUsage()
		return
	}

	a, err := newApp()
	if err != nil {
		fmt.Fprintf(os.Stderr, "casecore: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	switch os.Args[1] {
	case "archive":
		os.Exit(a.cmdArchive(os.Args[2:], true))
	case "unarchive":
		os.Exit(a.cmdArchive(os.Args[2:], false))
	case "replay":
		os.Exit(a.cmdReplay(os.Args[2:]))
	case "reconcile":
		os.Exit(a.cmdReconcile(os.Args[2:]))
	case "ledger":
		os.Exit(a.cmdLedger(os.Args[2:]))
	case "metrics":
		os.Exit(a.cmdMetrics(os.Args[2:]))
	default:
		fmt.Fprintf(os.Stderr, "casecore: unknown command %q\n", os.Args[1])
		fmt.Fprintln(os.Stderr, "Run 'casecore --help' for usage.")
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`casecore — case/form processing backend CLI

Usage:
  casecore <command> [flags]

Commands:
  archive   --domain D --form ID [--user U]   Archive a form
  unarchive --domain D --form ID [--user U]   Return a form to normal state
  replay    --form ID                         Re-execute a recorded system action form
  reconcile [--older-than DUR]                Complete interrupted archive operations
  ledger    --domain D --case C --section S --entry E
                                              Print a ledger value and its transactions
  metrics   [--addr :9090]                    Serve prometheus and expvar metrics

Environment:
  CASECORE_STORAGE_DRIVER    memory|sqlite|postgres (default sqlite)
  CASECORE_SQLITE_PATH       sqlite file path (default ./casecore.db)
  CASECORE_POSTGRES_DSN      postgres DSN when driver=postgres
  CASECORE_BLOB_DRIVER       fs|s3|memory (default fs)
  CASECORE_NATS_URL          when set, publish the change feed to NATS
`)
}
