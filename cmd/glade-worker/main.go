// glade-worker executes exactly one stored task record: it loads the
// record, evaluates its graph, writes the outcome back and exits 0 on
// success or nonzero on a captured failure. The process pool
// coordinator launches one of these per pending record.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/eleven-am/glade/internal/adapters/worker"
)

func main() {
	var (
		inPath      = flag.String("in", "", "path of the pending record to execute")
		outPath     = flag.String("out", "", "path the outcome record is written to")
		sessionPath = flag.String("session", "", "optional session snapshot path")
		printErrors = flag.Bool("print", false, "print captured errors to stderr")
		raiseErrors = flag.Bool("raise", false, "report captured errors on exit")
	)
	flag.Parse()

	if *inPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "glade-worker: -in and -out are required")
		os.Exit(worker.ExitCorrupt)
	}

	code, err := worker.Run(context.Background(), worker.Config{
		InputPath:   *inPath,
		OutputPath:  *outPath,
		SessionPath: *sessionPath,
		PrintErrors: *printErrors,
		RaiseErrors: *raiseErrors,
	})
	if err != nil && *raiseErrors {
		fmt.Fprintln(os.Stderr, "glade-worker:", err)
	}
	os.Exit(code)
}
