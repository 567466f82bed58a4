// Command client is an interactive shell that speaks protocol.go to a
// running cmd/server, formatting rows with tablewriter.
package main

import (
	"flag"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/olekukonko/tablewriter"

	"pagedb"
)

func formatTable(result *pagedb.QueryResult, w *os.File) {
	if result == nil || result.Schema.NumFields() == 0 {
		return
	}
	writer := tablewriter.NewWriter(w)
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

func runCLI(history string, conn net.Conn) {
	rl, err := readline.NewEx(&readline.Config{Prompt: "> ", HistoryFile: history})
	if err != nil {
		log.Fatal("failed to initialize readline:", err)
	}
	defer rl.Close()

	for {
		query, err := rl.Readline()
		if err != nil {
			break
		}
		query = strings.TrimSpace(query)
		if query == "" {
			continue
		}

		if err := pagedb.SendMessage(conn, []byte(query)); err != nil {
			log.Fatal("failed to send query:", err)
		}

		resp, err := pagedb.ReceiveResponse(conn)
		if err != nil {
			log.Fatal("failed to receive response:", err)
		}
		if resp == nil {
			continue
		}
		if resp.Error != "" {
			log.Println("error:", resp.Error)
			continue
		}
		formatTable(resp.Result, os.Stdout)
	}
}

func main() {
	addr := flag.String("addr", "localhost:1337", "address of the server")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		log.Fatal("failed to connect to server:", err)
	}
	defer conn.Close()

	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	runCLI(filepath.Join(cwd, "history.txt"), conn)
}
