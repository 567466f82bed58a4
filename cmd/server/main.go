// Command server exposes a Database over the length-prefixed JSON protocol
// in protocol.go, one goroutine per connection. It also runs a periodic
// checkpoint job via robfig/cron that flushes dirty pages on a fixed
// schedule; FlushAllPages itself skips any page still held by a live
// transaction, so the job can run on any schedule without racing an
// in-flight commit or abort.
package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log"
	"net"
	"os"
	"os/signal"

	"github.com/robfig/cron/v3"

	"pagedb"
)

func handleClient(db *pagedb.Database, conn net.Conn) {
	defer conn.Close()
	for {
		message, err := pagedb.RecvMessage(conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Printf("[%v] connection closed\n", conn.RemoteAddr())
			} else {
				log.Printf("[%v] failed to receive query: %v\n", conn.RemoteAddr(), err)
			}
			return
		}

		query := string(message)
		log.Printf("[%v] running %q\n", conn.RemoteAddr(), query)

		result, err := db.ExecuteTransaction(query)
		resp := &pagedb.Response{Result: result}
		if err != nil {
			resp = &pagedb.Response{Error: err.Error()}
		}

		if err := pagedb.SendResponse(conn, resp); err != nil {
			log.Printf("[%v] failed to send response: %v\n", conn.RemoteAddr(), err)
			return
		}
	}
}

func runServer(ctx context.Context, db *pagedb.Database, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		log.Printf("[%v] connected\n", conn.RemoteAddr())
		go handleClient(db, conn)
	}
}

func main() {
	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal("failed to get cwd:", err)
	}

	dataDir := flag.String("data", cwd, "data directory")
	catalogPath := flag.String("catalog", "", "catalog file to load on startup")
	addr := flag.String("addr", "localhost:1337", "address to bind to")
	maxPages := flag.Int("max-pages", 128, "buffer pool capacity in pages")
	checkpointSpec := flag.String("checkpoint", "@every 30s", "cron spec for the background flush job")
	flag.Parse()

	db, err := pagedb.NewDatabase(*dataDir, *catalogPath, *maxPages)
	if err != nil {
		log.Fatal("failed to open database:", err)
	}

	c := cron.New()
	if _, err := c.AddFunc(*checkpointSpec, func() {
		if err := db.FlushAllPages(); err != nil {
			log.Println("checkpoint flush failed:", err)
		}
	}); err != nil {
		log.Fatal("invalid checkpoint schedule:", err)
	}
	c.Start()
	defer c.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		cancel()
	}()

	log.Println("listening on", *addr)
	if err := runServer(ctx, db, *addr); err != nil {
		log.Fatal("server error:", err)
	}
	log.Println("closed successfully")
}
