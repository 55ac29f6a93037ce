package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/extectick/appeals-backend/internal/client"
)

func main() {
	baseURL := flag.String("server", envOrDefault("WATCH_SERVER_URL", "http://localhost:8080"), "base URL of the appeals API")
	backoff := flag.Duration("backoff", 3*time.Second, "delay between reconnect attempts")
	retries := flag.Int("retries", 5, "consecutive reconnect failures tolerated before giving up")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := godotenv.Load(); err == nil {
		logger.Debug("loaded .env file")
	}

	initData := os.Getenv("TELEGRAM_INIT_DATA")
	if initData == "" {
		logger.Error("TELEGRAM_INIT_DATA is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := client.NewAPIClient(*baseURL, &http.Client{Timeout: 0})

	viewer, err := api.Login(ctx, initData)
	if err != nil {
		logger.Error("login failed", "error", err)
		os.Exit(1)
	}
	logger.Info("logged in", "user_id", viewer.ID, "department_id", viewer.DepartmentID)

	reconciler := client.NewReconciler(viewer)
	watcher := client.NewClient(api, api, reconciler, client.Config{
		BackoffInterval: *backoff,
		MaxRetries:      *retries,
	}, logger)

	watcher.OnChange(func(changes []client.Change) {
		for _, change := range changes {
			if change.View == "" {
				fmt.Printf("%s  message on appeal %s\n", timestamp(), change.EntityID)
				continue
			}
			fmt.Printf("%s  [%s] %s %s\n", timestamp(), change.View, change.Kind, change.EntityID)
		}
		printViews(reconciler)
	})

	// Seed output once the first sync lands; afterwards OnChange drives it.
	go func() {
		for watcher.State() != client.StateConnected {
			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
		}
		printViews(reconciler)
	}()

	if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("watcher stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("watcher stopped")
}

func printViews(r *client.Reconciler) {
	printView("MY APPEALS", r.MyAppeals())
	printView("DEPARTMENT QUEUE", r.DepartmentQueue())
	printView("MY TASKS", r.MyTasks())
	fmt.Println()
}

func printView(title string, entries []client.Entry) {
	fmt.Printf("== %s (%d)\n", title, len(entries))
	for _, entry := range entries {
		marker := "  "
		if entry.JustChanged {
			marker = "* "
		}
		status := "?"
		if entry.Snapshot.Status != nil {
			status = *entry.Snapshot.Status
		}
		subject := ""
		if entry.Snapshot.Subject != nil {
			subject = *entry.Snapshot.Subject
		}
		number := ""
		if entry.Snapshot.Number != nil {
			number = fmt.Sprintf("#%d ", *entry.Snapshot.Number)
		}
		fmt.Printf("%s%s[%s] %s\n", marker, number, status, subject)
	}
}

func timestamp() string {
	return time.Now().Format("15:04:05")
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
