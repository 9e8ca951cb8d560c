package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/furisto/console/client"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

// mainInner tails the server's history to stdout while forwarding lines read
// from stdin as code submissions.
func mainInner() error {
	urlVar := flag.String("url", "http://localhost:8080", "base url of the console server")
	tokenVar := flag.String("token", "", "access token")
	windowVar := flag.Int("window", client.DefaultWindow, "bytes to request per poll")
	flag.Parse()

	if *tokenVar == "" {
		return fmt.Errorf("a -token is required")
	}

	c, err := client.New(*urlVar, *tokenVar)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	printer := &tailPrinter{}
	poller := client.NewPoller(c, *windowVar, printer.update)

	wg := new(sync.WaitGroup)
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if err := c.Submit(ctx, scanner.Bytes()); err != nil {
				slog.Error("failed to submit snippet", "error", err)
				continue
			}
			poller.Kick()
		}
	}()

	err = poller.Run(ctx)
	cancel()
	wg.Wait()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// tailPrinter writes only the bytes not yet printed, so the terminal behaves
// like tail -f. An epoch change or left trim forces a visible resync marker
// and reprints the mirror from its start.
type tailPrinter struct {
	version int
	printed int
}

func (p *tailPrinter) update(m client.Mirror) {
	if m.Version != p.version || m.Start+len(m.Data) < p.printed || m.Start > p.printed {
		fmt.Printf("\n--- resync (version %d, offset %d) ---\n", m.Version, m.Start)
		p.version = m.Version
		p.printed = m.Start
	}
	os.Stdout.Write(m.Data[p.printed-m.Start:])
	p.printed = m.Start + len(m.Data)
}
