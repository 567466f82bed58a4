// Command repl is a single-process interactive shell over the storage and
// execution engine: no network, no server — every statement runs directly
// against a local Database, with results rendered through tablewriter the
// way cmd/client does.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/chzyer/readline"
	"github.com/olekukonko/tablewriter"

	"pagedb"
)

func formatResult(result *pagedb.QueryResult) {
	if result == nil || result.Schema.NumFields() == 0 {
		fmt.Println("OK")
		return
	}

	writer := tablewriter.NewWriter(os.Stdout)
	writer.SetHeader(result.Schema.FieldNames())
	for _, row := range result.Rows {
		cells := make([]string, 0, len(row.Values))
		for _, v := range row.Values {
			cells = append(cells, v.String())
		}
		writer.Append(cells)
	}
	writer.Render()
}

func main() {
	dataDir := flag.String("data", ".", "data directory")
	catalogPath := flag.String("catalog", "", "catalog file to load on startup")
	maxPages := flag.Int("max-pages", 128, "buffer pool capacity in pages")
	flag.Parse()

	db, err := pagedb.NewDatabase(*dataDir, *catalogPath, *maxPages)
	if err != nil {
		log.Fatal("failed to open database:", err)
	}

	rl, err := readline.New("> ")
	if err != nil {
		log.Fatal("failed to initialize readline:", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			break
		}
		if line == "" {
			continue
		}

		result, err := db.ExecuteTransaction(line)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		formatResult(result)
	}
}
