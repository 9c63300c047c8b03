package peek

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"text/tabwriter"

	"github.com/RestinGreen/stable-pricer/pkg/feed"
)

const pricePlaces = 6

type SnapshotSource interface {
	Latest() (feed.Snapshot, bool)
}

type PairCounter interface {
	Len() int
}

// Peek answers single key presses: p prints prices, c counts pairs, q quits.
type Peek struct {
	in    io.Reader
	out   io.Writer
	feed  SnapshotSource
	pairs PairCounter
}

func NewPeek(in io.Reader, out io.Writer, feed SnapshotSource, pairs PairCounter) *Peek {

	return &Peek{in: in, out: out, feed: feed, pairs: pairs}
}

// Cbreak switches the terminal to unbuffered input without echo. The returned
// func restores it.
func Cbreak() func() {
	exec.Command("stty", "-F", "/dev/tty", "cbreak", "min", "1", "-echo").Run()
	return func() {
		exec.Command("stty", "-F", "/dev/tty", "echo", "-cbreak").Run()
	}
}

// Run handles key presses until q, end of input or ctx is done.
func (p *Peek) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	keys := make(chan byte)
	readErr := make(chan error, 1)
	go func() {
		b := make([]byte, 1)
		for {
			n, err := p.in.Read(b)
			if n == 1 {
				select {
				case keys <- b[0]:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read key: %w", err)
		case key := <-keys:
			switch key {
			case 'p':
				p.printPrices()
			case 'c':
				fmt.Fprintln(p.out, "Pairs:", p.pairs.Len())
			case 'q':
				return nil
			}
		}
	}
}

func (p *Peek) printPrices() {
	snapshot, ok := p.feed.Latest()
	if !ok {
		fmt.Fprintln(p.out, "No prices yet.")
		return
	}

	fmt.Fprintln(p.out, "-----------------------------------------------------")
	fmt.Fprintln(p.out, "Prices at", snapshot.At.Format("15:04:05"))
	w := tabwriter.NewWriter(p.out, 0, 4, 2, ' ', 0)
	for i, token := range snapshot.Tokens {
		q := snapshot.Quotes[i]
		price := "unavailable"
		if q.Available() {
			price = q.Price.ToFixed(pricePlaces)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", token, q.Route, price)
	}
	w.Flush()
	fmt.Fprintln(p.out, "-----------------------------------------------------")
}

