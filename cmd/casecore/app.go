package main

import (
	"context"
	"expvar"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"casecore/internal/blob"
	"casecore/internal/core"
	"casecore/internal/feed"
)

type app struct {
	svc  *core.Service
	nats *feed.NATSPublisher
}

func newApp() (*app, error) {
	backend, err := core.OpenBackend()
	if err != nil {
		return nil, err
	}
	blobs, err := blob.Open(context.Background())
	if err != nil {
		return nil, err
	}

	opts := []core.Option{
		core.WithBlobStore(blobs),
		core.WithLogger(stderrLogger{}),
	}
	a := &app{}
	if os.Getenv("CASECORE_NATS_URL") != "" {
		pub, err := feed.ConnectNATS("")
		if err != nil {
			return nil, err
		}
		a.nats = pub
		opts = append(opts, core.WithPublisher(pub))
	}
	a.svc = core.New(backend, opts...)
	return a, nil
}

func (a *app) Close() {
	if a.nats != nil {
		a.nats.Close()
	}
}

func (a *app) cmdArchive(args []string, archive bool) int {
	name := "archive"
	if !archive {
		name = "unarchive"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	domainName := fs.String("domain", "", "owning domain")
	formID := fs.String("form", "", "form id")
	userID := fs.String("user", "", "acting user id")
	_ = fs.Parse(args)
	if *domainName == "" || *formID == "" {
		fmt.Fprintf(os.Stderr, "%s: --domain and --form are required\n", name)
		return 2
	}
	forms := a.svc.Forms(*domainName)
	var err error
	if archive {
		err = forms.Archive(context.Background(), *formID, *userID)
	} else {
		err = forms.Unarchive(context.Background(), *formID, *userID)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		return 1
	}
	fmt.Printf("%sd form %s\n", name, *formID)
	return 0
}

func (a *app) cmdReplay(args []string) int {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	formID := fs.String("form", "", "system action form id")
	_ = fs.Parse(args)
	if *formID == "" {
		fmt.Fprintln(os.Stderr, "replay: --form is required")
		return 2
	}
	if err := a.svc.Actions().Replay(context.Background(), *formID); err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 1
	}
	fmt.Printf("replayed action form %s\n", *formID)
	return 0
}

func (a *app) cmdReconcile(args []string) int {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
	olderThan := fs.Duration("older-than", 5*time.Minute, "minimum stub age before re-driving")
	_ = fs.Parse(args)
	completed, err := a.svc.ReconcileUnfinishedArchives(context.Background(), *olderThan)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reconcile: %v\n", err)
		return 1
	}
	fmt.Printf("reconciled %d archive operation(s)\n", completed)
	return 0
}

func (a *app) cmdLedger(args []string) int {
	fs := flag.NewFlagSet("ledger", flag.ExitOnError)
	domainName := fs.String("domain", "", "owning domain")
	caseID := fs.String("case", "", "case id")
	sectionID := fs.String("section", "", "ledger section id")
	entryID := fs.String("entry", "", "ledger entry id")
	_ = fs.Parse(args)
	if *domainName == "" || *caseID == "" || *sectionID == "" || *entryID == "" {
		fmt.Fprintln(os.Stderr, "ledger: --domain, --case, --section and --entry are required")
		return 2
	}
	ledgers := a.svc.Ledgers(*domainName)
	value, err := ledgers.GetValue(context.Background(), *caseID, *sectionID, *entryID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ledger: %v\n", err)
		return 1
	}
	fmt.Printf("balance %d (last modified %s, last form %s)\n",
		value.Balance, value.LastModified.Format(time.RFC3339), value.LastFormID)
	txs, err := ledgers.GetTransactions(context.Background(), *caseID, *sectionID, *entryID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ledger: %v\n", err)
		return 1
	}
	for _, tx := range txs {
		fmt.Printf("  %s  %+d  form=%s\n", tx.ReportedOn.Format(time.RFC3339), tx.Delta, tx.FormID)
	}
	return 0
}

func (a *app) cmdMetrics(args []string) int {
	fs := flag.NewFlagSet("metrics", flag.ExitOnError)
	addr := fs.String("addr", ":9090", "listen address")
	_ = fs.Parse(args)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/debug/vars", expvar.Handler())
	fmt.Printf("serving metrics on %s\n", *addr)
	server := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := server.ListenAndServe(); err != nil {
		fmt.Fprintf(os.Stderr, "metrics: %v\n", err)
		return 1
	}
	return 0
}

// stderrLogger writes structured key/value lines through the standard
// library logger.
type stderrLogger struct{}

func (stderrLogger) log(level, msg string, args ...any) {
	line := level + " " + msg
	for i := 0; i+1 < len(args); i += 2 {
		line += fmt.Sprintf(" %v=%v", args[i], args[i+1])
	}
	log.Println(line)
}

func (l stderrLogger) Debug(msg string, args ...any) { l.log("DEBUG", msg, args...) }
func (l stderrLogger) Info(msg string, args ...any)  { l.log("INFO", msg, args...) }
func (l stderrLogger) Warn(msg string, args ...any)  { l.log("WARN", msg, args...) }
func (l stderrLogger) Error(msg string, args ...any) { l.log("ERROR", msg, args...) }
