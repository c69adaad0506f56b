// ABOUTME: Standalone in-memory chat service for trying tutorchat locally.
// ABOUTME: Usage: fake-chatserver [-addr localhost:5000] [-users "Ada,Bob"] [-echo]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/2389/tutorchat/internal/fakeserver"
)

func main() {
	addr := flag.String("addr", "localhost:5000", "HTTP listen address")
	secret := flag.String("secret", "", "Token signing secret (random when empty)")
	users := flag.String("users", "Ada Lovelace,Bob Tutor", "Comma-separated display names to seed")
	ttl := flag.Duration("ttl", 24*time.Hour, "Lifetime of the printed tokens")
	echo := flag.Bool("echo", false, "Relay chat messages back to their sender too")
	flag.Parse()

	if err := run(*addr, *secret, *users, *ttl, *echo); err != nil {
		log.Fatal(err)
	}
}

func run(addr, secret, users string, ttl time.Duration, echo bool) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	srv := fakeserver.New(fakeserver.Options{
		Secret:       []byte(secret),
		EchoToSender: echo,
		Logger:       logger,
	})
	defer srv.Close()

	green := color.New(color.FgGreen)
	dim := color.New(color.FgHiBlack)

	var names []string
	for name := range strings.SplitSeq(users, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return errors.New("at least one user is required")
	}

	fmt.Println()
	for _, name := range names {
		email := strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "@example.com"
		u := srv.AddUser(name, email)
		token, err := srv.IssueToken(u.ID, ttl)
		if err != nil {
			return fmt.Errorf("issuing token for %s: %w", name, err)
		}
		green.Print("    ▶ ")
		fmt.Printf("%s ", name)
		dim.Printf("(%s)\n", u.ID)
		fmt.Printf("      TUTORCHAT_TOKEN=%s\n", token)
	}
	fmt.Println()
	green.Print("    ▶ ")
	fmt.Printf("REST      http://%s/api\n", addr)
	green.Print("    ▶ ")
	fmt.Printf("Channel   ws://%s/ws\n\n", addr)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	srv.DisconnectAll()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	fmt.Fprintln(os.Stderr, "stopped")
	return nil
}
