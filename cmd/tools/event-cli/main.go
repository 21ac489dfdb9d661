package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/annel0/mmo-tools/internal/eventbus"
)

const timeFormat = "2006-01-02T15:04:05Z"

func main() {
	var (
		natsURL    = flag.String("nats", "nats://127.0.0.1:4222", "NATS server URL")
		stream     = flag.String("stream", "TOOLS", "JetStream stream name")
		command    = flag.String("cmd", "tail", "Command: tail, stats")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated)")
		sources    = flag.String("sources", "", "Sources filter (comma-separated)")
		limit      = flag.Int("limit", 0, "Stop after N events (0 - no limit)")
		duration   = flag.Duration("for", 0, "Stop after duration (0 - until Ctrl+C)")
	)
	flag.Parse()

	bus, err := eventbus.NewJetStreamBus(*natsURL, *stream, 0)
	if err != nil {
		log.Fatalf("❌ Failed to connect to NATS: %v", err)
	}
	defer bus.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	filter := eventbus.Filter{
		Types:   parseStringList(*eventTypes),
		Sources: parseStringList(*sources),
	}

	switch *command {
	case "tail":
		err = tailEvents(ctx, bus, filter, *limit, os.Stdout)
	case "stats":
		err = showStats(ctx, bus, filter, *limit, os.Stdout)
	default:
		log.Fatalf("❌ Unknown command: %s", *command)
	}
	if err != nil {
		log.Fatalf("❌ %s failed: %v", *command, err)
	}
}

// consume подписывается и ждёт limit событий или отмены контекста
func consume(ctx context.Context, bus eventbus.EventBus, f eventbus.Filter, limit int, fn func(*eventbus.Envelope)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu   sync.Mutex
		seen int
	)
	sub, err := bus.Subscribe(ctx, f, func(_ context.Context, ev *eventbus.Envelope) {
		mu.Lock()
		defer mu.Unlock()
		if limit > 0 && seen >= limit {
			return
		}
		fn(ev)
		seen++
		if limit > 0 && seen >= limit {
			cancel()
		}
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	return nil
}

func tailEvents(ctx context.Context, bus eventbus.EventBus, f eventbus.Filter, limit int, out io.Writer) error {
	fmt.Fprintf(out, "📡 Streaming events (Ctrl+C to stop)...\n")
	return consume(ctx, bus, f, limit, func(ev *eventbus.Envelope) {
		fmt.Fprintln(out, formatEvent(ev))
	})
}

func showStats(ctx context.Context, bus eventbus.EventBus, f eventbus.Filter, limit int, out io.Writer) error {
	counts := make(map[string]int)
	started := time.Now()
	err := consume(ctx, bus, f, limit, func(ev *eventbus.Envelope) {
		counts[ev.EventType]++
	})
	if err != nil {
		return err
	}
	printStats(out, counts, time.Since(started))
	return nil
}

func formatEvent(ev *eventbus.Envelope) string {
	fields, err := ev.Fields()
	payload := "{}"
	if err != nil {
		payload = fmt.Sprintf("<%v>", err)
	} else if len(fields) > 0 {
		if data, err := json.Marshal(fields); err == nil {
			payload = string(data)
		}
	}
	return fmt.Sprintf("[%s] %-14s src=%s prio=%d %s",
		ev.Timestamp.UTC().Format(timeFormat), ev.EventType, ev.Source, ev.Priority, payload)
}

func printStats(out io.Writer, counts map[string]int, took time.Duration) {
	types := make([]string, 0, len(counts))
	total := 0
	for t, n := range counts {
		types = append(types, t)
		total += n
	}
	sort.Strings(types)

	fmt.Fprintf(out, "📊 Events: %d in %s\n", total, took.Round(time.Second))
	for _, t := range types {
		fmt.Fprintf(out, "  %-16s %d\n", t, counts[t])
	}
}

func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	var result []string
	for _, item := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
