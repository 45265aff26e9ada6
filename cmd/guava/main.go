// Spins up the guava server, an ordered in-memory key-value store compatible
// w/ the Redis protocol. With -demo it runs a fixed insert/lookup sequence
// against the skip list index and exits.

package main

import (
	"cmp"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/guavadb/guava/pkg/config"
	"github.com/guavadb/guava/pkg/port"
	"github.com/guavadb/guava/pkg/storage"
	"github.com/guavadb/guava/pkg/utils"
)

var (
	printVersion = flag.Bool("print_version", false, "Print the version and exit.")
	runDemo      = flag.Bool("demo", false, "Run a fixed sequence of inserts and lookups, print the results, and exit.")
)

func main() {
	config.InitFlags()
	utils.InitLogging()

	if *printVersion {
		slog.Info("Guava build info.", "version", utils.Version, "commit", utils.Commit, "build", utils.BuildTime)
		return
	}
	if *runDemo {
		if err := demo(); err != nil {
			slog.Error("Demo failed.", "err", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, os.Kill)

	go func() { // Listen for OS interrupts in the background.
		sig := <-signals
		slog.Info("Received termination signal, cancelling server context.", "signal", sig)
		cancel()
	}()

	store, err := storage.NewShardedTable()
	if err != nil {
		slog.Error("Failed to create the store.", "err", err)
		os.Exit(1)
	}
	if err := port.RunRedisServer(ctx, store); err != nil {
		slog.Error("Guava server stopped.", "err", err)
		os.Exit(1)
	}
}

// demo exercises the skip list index directly with a handful of operations.
func demo() error {
	names := map[int]string{5: "five", 1: "one", 3: "three", 7: "seven", 2: "two"}
	list, err := storage.NewSkipList[int, string](cmp.Compare, 4 /*initialLevels*/, 0.5 /*p*/)
	if err != nil {
		return err
	}

	fmt.Println("Inserting values into skip list...")
	for _, key := range []int{5, 1, 3, 7, 2} {
		list.Insert(key, names[key])
	}

	fmt.Println("\nSearching for values:")
	for key := 1; key <= 7; key++ {
		if value, found := list.Get(key); found {
			fmt.Printf("Key %d: %s\n", key, value)
		} else {
			fmt.Printf("Key %d: Not found\n", key)
		}
	}

	previous, _ := list.Insert(3, "THREE")
	fmt.Printf("\nUpdated key 3. Old value: %q\n", previous)
	updated, _ := list.Get(3)
	fmt.Printf("New value: %q\n", updated)

	fmt.Print("\nOrdered walk:")
	for key, value := range list.Items() {
		fmt.Printf(" %d=%s", key, value)
	}
	fmt.Printf("\n\nFinal stats: %d elements across %d levels\n", list.Len(), list.Levels())
	return nil
}
