package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/owenbell/lsmkv/pkg/config"
	"github.com/owenbell/lsmkv/pkg/logging"
	"github.com/owenbell/lsmkv/pkg/lsm"
)

var valueSizes = []int{50, 500, 5000, 50000}

func main() {
	configPath := flag.String("config", "", "Path to YAML config (overrides -dir)")
	dir := flag.String("dir", "./data/benchmark", "Data directory")
	ops := flag.Int("ops", 10000, "Operations per value size")
	iters := flag.Int("iters", 5, "Iterations per value size")
	flag.Parse()

	cfg := config.Default()
	cfg.DataDir = *dir
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	fmt.Printf("lsmkv - Storage Engine Benchmark\n")
	fmt.Printf("================================\n\n")
	fmt.Printf("Configuration:\n")
	fmt.Printf("  Data Dir: %s\n", cfg.DataDir)
	fmt.Printf("  Ops: %d\n", *ops)
	fmt.Printf("  Iterations: %d\n", *iters)
	fmt.Printf("  Value Sizes: %v\n\n", valueSizes)

	// Clean up old data
	os.RemoveAll(cfg.DataDir)

	opts := lsm.DefaultOptions(cfg.DataDir)
	opts.CacheCapacity = cfg.CacheCapacity
	opts.Logger = logging.NewJSONLogger(os.Stderr, logging.ParseLevel(cfg.LogLevel))

	store, err := lsm.New(opts)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	getTotals := make([]time.Duration, len(valueSizes))

	for iter := 0; iter < *iters; iter++ {
		fmt.Printf("Iteration %d:\n", iter+1)

		for i, size := range valueSizes {
			value := bytes.Repeat([]byte{'s'}, size)

			keys := make([]uint64, *ops)
			for k := range keys {
				keys[k] = uint64(k)
			}

			// Clear previous data
			if err := store.Reset(); err != nil {
				log.Fatalf("Failed to reset store: %v", err)
			}

			rand.Shuffle(len(keys), func(a, b int) { keys[a], keys[b] = keys[b], keys[a] })
			for _, key := range keys {
				if err := store.Put(key, value); err != nil {
					log.Fatalf("Failed to put key %d: %v", key, err)
				}
			}

			rand.Shuffle(len(keys), func(a, b int) { keys[a], keys[b] = keys[b], keys[a] })
			start := time.Now()
			for _, key := range keys {
				if _, err := store.Get(key); err != nil {
					log.Fatalf("Failed to get key %d: %v", key, err)
				}
			}
			elapsed := time.Since(start)
			getTotals[i] += elapsed

			fmt.Printf("  GET delay for size %d: %v (%.0f ops/sec)\n",
				size, elapsed, float64(*ops)/elapsed.Seconds())
		}
	}

	fmt.Printf("\nAverages over %d iterations:\n", *iters)
	for i, size := range valueSizes {
		avg := getTotals[i] / time.Duration(*iters**ops)
		fmt.Printf("  Value size %6d: %v per GET\n", size, avg)
	}
}
