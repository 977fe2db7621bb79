// Command simroute runs one off-line inter-domain routing simulation:
// load a topology and optional ROV deployment, rank the AS graph, seed
// origin announcements, propagate to a fixed point, and write the
// resulting per-AS routing tables.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/anaximander-rib/interdomain-sim/internal/asgraph"
	"github.com/anaximander-rib/interdomain-sim/internal/asn"
	"github.com/anaximander-rib/interdomain-sim/internal/iofmt"
	"github.com/anaximander-rib/interdomain-sim/internal/propagate"
	"github.com/anaximander-rib/interdomain-sim/internal/runlog"
)

// handle_args_simulation parses the simulation CLI surface. It returns
// the flags as given; resolveTestPaths then fills in, following the
// bench/NAME layout, any of the four path flags left blank when testName
// is non-empty.
func handle_args_simulation(args []string) (topology, rovFile, seeds, out, testName, runlogPath string, workers int) {
	cmd := flag.NewFlagSet("simroute", flag.ExitOnError)

	cmd.StringVar(&topology, "topology", "", "Pipe-delimited AS-relationship topology file")
	cmd.StringVar(&rovFile, "rov", "", "ROV-deployment file, one ASN per line")
	cmd.StringVar(&seeds, "seeds", "", "CSV seeds file (asn,prefix,rov_invalid)")
	cmd.StringVar(&out, "out", "", "Output CSV file")
	cmd.StringVar(&testName, "test-name", "", "Resolves unset path flags to bench/NAME/... and output/NAME.csv")
	cmd.StringVar(&runlogPath, "runlog", "", "Optional SQLite file to append one row of run metadata to")
	cmd.IntVar(&workers, "workers", propagate.DefaultWorkers, "Worker count for the rank-barrier fan-out")

	cmd.Parse(args)
	return
}

func resolveTestPaths(testName string, topology, rovFile, seeds, out *string) {
	if testName == "" {
		return
	}
	benchDir := filepath.Join("bench", testName)
	if *topology == "" {
		*topology = filepath.Join(benchDir, "CAIDAASGraphCollector.txt")
	}
	if *rovFile == "" {
		*rovFile = filepath.Join(benchDir, "rov_asns.csv")
	}
	if *seeds == "" {
		*seeds = filepath.Join(benchDir, "anns.csv")
	}
	if *out == "" {
		*out = filepath.Join("output", testName+".csv")
	}
}

func main() {
	log.SetFlags(0)

	topology, rovFile, seeds, out, testName, runlogPath, workers := handle_args_simulation(os.Args[1:])
	resolveTestPaths(testName, &topology, &rovFile, &seeds, &out)

	if topology == "" {
		log.Fatal("simroute: --topology (or --test-name) is required")
	}

	start := time.Now()

	g, err := loadGraph(topology, rovFile)
	if err != nil {
		log.Fatalf("simroute: %v", err)
	}

	if err := g.Flatten(); err != nil {
		log.Fatalf("simroute: topology has a cycle, refusing to propagate: %v", err)
	}

	stats := g.Stats()
	log.Printf("simroute: loaded %d ASes, %d edges, %d ranks, %d ROV-enabled", stats.ASCount, stats.EdgeCount, stats.RankCount, stats.ROVEnabledASes)

	var seedRows []iofmt.Seed
	if seeds != "" {
		if _, statErr := os.Stat(seeds); os.IsNotExist(statErr) {
			log.Printf("simroute: seeds file %s not found, no seeds installed", seeds)
		} else {
			seedRows, err = loadSeeds(seeds)
			if err != nil {
				log.Fatalf("simroute: %v", err)
			}
		}
	}
	log.Printf("simroute: loaded %d seeds", len(seedRows))

	engine := propagate.New(g)
	engine.Workers = workers
	engine.Logger = log.Default()
	engine.Seed(seedRows)

	rows := engine.Run()
	log.Printf("simroute: propagation produced %d output rows", len(rows))

	if out != "" {
		if err := writeOutput(out, rows); err != nil {
			log.Fatalf("simroute: %v", err)
		}
	}

	if runlogPath != "" {
		err := runlog.Append(runlogPath, runlog.Entry{
			StartedAt:    start,
			TopologyFile: topology,
			SeedCount:    len(seedRows),
			RankCount:    stats.RankCount,
			Duration:     time.Since(start),
		})
		if err != nil {
			log.Fatalf("simroute: %v", err)
		}
	}
}

func loadGraph(topology, rovFile string) (*asgraph.Graph, error) {
	f, err := os.Open(topology)
	if err != nil {
		return nil, fmt.Errorf("opening topology file: %w", err)
	}
	defer f.Close()

	edges, err := asgraph.LoadTopology(f)
	if err != nil {
		return nil, fmt.Errorf("parsing topology file: %w", err)
	}

	enabled, err := loadROV(rovFile)
	if err != nil {
		return nil, err
	}

	return asgraph.Build(edges, enabled), nil
}

func loadROV(rovFile string) (map[asn.ASN]bool, error) {
	if rovFile == "" {
		return nil, nil
	}
	f, err := os.Open(rovFile)
	if err != nil {
		return nil, fmt.Errorf("opening ROV deployment file: %w", err)
	}
	defer f.Close()

	enabled, err := asgraph.LoadROVDeployment(f)
	if err != nil {
		return nil, fmt.Errorf("parsing ROV deployment file: %w", err)
	}
	return enabled, nil
}

func loadSeeds(path string) ([]iofmt.Seed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening seeds file: %w", err)
	}
	defer f.Close()

	seedRows, err := iofmt.LoadSeeds(f)
	if err != nil {
		return nil, fmt.Errorf("parsing seeds file: %w", err)
	}
	return seedRows, nil
}

func writeOutput(path string, rows []iofmt.OutputRow) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	if err := iofmt.WriteOutput(f, rows); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}
	return nil
}
