// inspect dumps raw store keys by scope and prefix. Operator tooling:
// run it against a stopped server's database directory.
package main

import (
	"flag"
	"fmt"
	"os"

	"chatmux/pkg/logger"
	"chatmux/pkg/store"
)

func main() {
	var (
		path   string
		scope  string
		prefix string
		values bool
	)
	flag.StringVar(&path, "db", "", "path to the pebble database directory")
	flag.StringVar(&scope, "scope", "shared", "key scope (shared|local)")
	flag.StringVar(&prefix, "prefix", "", "key prefix to list")
	flag.BoolVar(&values, "values", false, "print values as well as keys")
	flag.Parse()
	if path == "" {
		fmt.Fprintln(os.Stderr, "--db required")
		os.Exit(2)
	}
	var sc store.Scope
	switch scope {
	case "shared":
		sc = store.ScopeShared
	case "local":
		sc = store.ScopeLocal
	default:
		fmt.Fprintln(os.Stderr, "--scope must be shared or local")
		os.Exit(2)
	}

	logger.Init()
	kv, err := store.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open failed: %v\n", err)
		os.Exit(1)
	}
	defer kv.Close()

	entries, err := kv.ListPrefix(sc, prefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list failed: %v\n", err)
		os.Exit(1)
	}
	for _, e := range entries {
		if values {
			fmt.Printf("%s\t%s\n", e.Key, e.Value)
		} else {
			fmt.Println(e.Key)
		}
	}
	fmt.Fprintf(os.Stderr, "%d keys\n", len(entries))
}
