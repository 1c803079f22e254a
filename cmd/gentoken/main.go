// Package main provides a simple tool to generate bearer tokens for logtower
// agents and dashboards.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/logtower/logtower/internal/auth"
)

func main() {
	subject := flag.String("subject", "agent", "Subject identity for the token")
	secret := flag.String("secret", "", "Signing secret (or set AUTH_SECRET env var)")
	expiry := flag.Duration("expiry", 24*365*time.Hour, "Token expiry duration (default: 1 year)")
	flag.Parse()

	authSecret := *secret
	if authSecret == "" {
		authSecret = os.Getenv("AUTH_SECRET")
	}
	if authSecret == "" {
		fmt.Fprintln(os.Stderr, "Error: signing secret required. Use -secret flag or set AUTH_SECRET env var")
		fmt.Fprintln(os.Stderr, "Example: go run ./cmd/gentoken -secret 'your-secret-at-least-32-chars-long'")
		os.Exit(1)
	}
	if len(authSecret) < 32 {
		fmt.Fprintln(os.Stderr, "Error: signing secret must be at least 32 characters")
		os.Exit(1)
	}

	svc := auth.NewService(&auth.Config{
		Secret:      []byte(authSecret),
		TokenExpiry: *expiry,
	}, nil)

	token, err := svc.GenerateToken(*subject)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
}
