package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"waymesh.ai/internal/persistence/indexdb"
)

// Offline read-model inspector for a world's sqlite index.
//
//	admin -db data/worlds/world_1/index.db stuck [agent_id]
//	admin -db data/worlds/world_1/index.db ticks <from> <to>
//	admin -db data/worlds/world_1/index.db audit <agent_id>
func main() {
	var (
		dbPath = flag.String("db", "./data/worlds/world_1/index.db", "path to index.db")
		limit  = flag.Int("limit", 50, "max rows")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[admin] ", 0)
	args := flag.Args()
	if len(args) == 0 {
		logger.Fatalf("usage: admin [-db path] stuck|ticks|audit ...")
	}

	idx, err := indexdb.OpenSQLite(*dbPath)
	if err != nil {
		logger.Fatalf("open: %v", err)
	}
	defer idx.Close()

	switch args[0] {
	case "stuck":
		agent := ""
		if len(args) > 1 {
			agent = args[1]
		}
		eps, err := idx.StuckEpisodes(agent, *limit)
		if err != nil {
			logger.Fatalf("stuck: %v", err)
		}
		dump(eps)

	case "ticks":
		if len(args) < 3 {
			logger.Fatalf("usage: admin ticks <from> <to>")
		}
		from, err1 := strconv.ParseUint(args[1], 10, 64)
		to, err2 := strconv.ParseUint(args[2], 10, 64)
		if err1 != nil || err2 != nil {
			logger.Fatalf("ticks: bad range %q..%q", args[1], args[2])
		}
		rows, err := idx.Ticks(from, to)
		if err != nil {
			logger.Fatalf("ticks: %v", err)
		}
		dump(rows)

	case "audit":
		if len(args) < 2 {
			logger.Fatalf("usage: admin audit <agent_id>")
		}
		trail, err := idx.AuditTrail(args[1], *limit)
		if err != nil {
			logger.Fatalf("audit: %v", err)
		}
		dump(trail)

	default:
		logger.Fatalf("unknown command %q", args[0])
	}
}

func dump(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
