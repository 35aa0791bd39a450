// gastrace inspects archived execution gas traces.
//
// Usage:
//
//	gastrace -db traces.db list
//	gastrace -db traces.db show <id>
//	gastrace -db traces.db top [-n 20]
//	gastrace -db traces.db delete <id>
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/cobaltchain/cobalt-fvm/pkg/gas"
	"github.com/cobaltchain/cobalt-fvm/pkg/tracestore"
)

// Version information
var (
	Version   = "0.1.0"
	GitCommit = "dev"
)

var (
	dbPath      = flag.String("db", "traces.db", "Path to the tracestore database")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("gastrace %s (%s)\n", Version, GitCommit)
		os.Exit(0)
	}

	log.SetFlags(0)

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	switch args[0] {
	case "list":
		runList()
	case "show":
		if len(args) != 2 {
			log.Fatal("show requires a trace id")
		}
		runShow(args[1])
	case "top":
		n := 20
		topFlags := flag.NewFlagSet("top", flag.ExitOnError)
		topN := topFlags.Int("n", n, "Number of charge names to show")
		topFlags.Parse(args[1:])
		runTop(*topN)
	case "delete":
		if len(args) != 2 {
			log.Fatal("delete requires a trace id")
		}
		runDelete(args[1])
	default:
		log.Fatalf("unknown command %q", args[0])
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `gastrace inspects archived execution gas traces.

Usage:
  gastrace [flags] <command> [args]

Commands:
  list          List archived trace ids with their gas envelopes
  show <id>     Dump one trace, charge by charge
  top [-n N]    Aggregate gas by charge name across all traces
  delete <id>   Remove a trace from the archive

Flags:
`)
	flag.PrintDefaults()
}

func openStore(readOnly bool) *tracestore.Store {
	cfg := tracestore.DefaultConfig(*dbPath)
	cfg.ReadOnly = readOnly
	store, err := tracestore.Open(cfg)
	if err != nil {
		log.Fatalf("open tracestore: %v", err)
	}
	return store
}

func runList() {
	store := openStore(true)
	defer store.Close()

	ids, err := store.IDs()
	if err != nil {
		log.Fatalf("list traces: %v", err)
	}
	if len(ids) == 0 {
		fmt.Println("no traces archived")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEPOCH\tLIMIT\tUSED\tCHARGES")
	for _, id := range ids {
		rec, err := store.Get(id)
		if err != nil {
			log.Fatalf("get %s: %v", id, err)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\n",
			rec.ID, rec.Epoch, rec.GasLimit, rec.GasUsed, len(rec.Charges))
	}
	w.Flush()
}

func runShow(id string) {
	store := openStore(true)
	defer store.Close()

	rec, err := store.Get(id)
	if err != nil {
		log.Fatalf("get %s: %v", id, err)
	}

	fmt.Printf("trace %s\n", rec.ID)
	fmt.Printf("  epoch:    %d\n", rec.Epoch)
	fmt.Printf("  limit:    %s\n", rec.GasLimit)
	fmt.Printf("  used:     %s\n", rec.GasUsed)
	fmt.Printf("  recorded: %s\n", rec.RecordedAt.Format("2006-01-02 15:04:05"))
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tNAME\tCOMPUTE\tOTHER\tTOTAL\tELAPSED")
	for i, ch := range rec.Charges {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			i, ch.Name, ch.ComputeGas, ch.OtherGas, ch.Total(), ch.Elapsed)
	}
	w.Flush()
}

func runTop(n int) {
	store := openStore(true)
	defer store.Close()

	ids, err := store.IDs()
	if err != nil {
		log.Fatalf("list traces: %v", err)
	}

	type agg struct {
		name  string
		total gas.Gas
		count int
	}
	byName := make(map[string]*agg)
	for _, id := range ids {
		rec, err := store.Get(id)
		if err != nil {
			log.Fatalf("get %s: %v", id, err)
		}
		for _, ch := range rec.Charges {
			a, ok := byName[ch.Name]
			if !ok {
				a = &agg{name: ch.Name}
				byName[ch.Name] = a
			}
			a.total = a.total.Add(ch.Total())
			a.count++
		}
	}

	rows := make([]*agg, 0, len(byName))
	for _, a := range byName {
		rows = append(rows, a)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].total > rows[j].total })
	if len(rows) > n {
		rows = rows[:n]
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCALLS\tTOTAL GAS")
	for _, a := range rows {
		fmt.Fprintf(w, "%s\t%d\t%s\n", a.name, a.count, a.total)
	}
	w.Flush()
}

func runDelete(id string) {
	store := openStore(false)
	defer store.Close()

	if _, err := store.Get(id); err != nil {
		log.Fatalf("get %s: %v", id, err)
	}
	if err := store.Delete(id); err != nil {
		log.Fatalf("delete %s: %v", id, err)
	}
	fmt.Printf("deleted %s\n", id)
}
