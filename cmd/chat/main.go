package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"genius-backend/internal/client"
	"genius-backend/internal/middleware"
	"genius-backend/internal/models"
)

// resolveToken returns token when set. Otherwise it mints a short-lived dev
// token signed with secret, the way a local server configured with the same
// JWT_SECRET would accept it.
func resolveToken(token, secret, userID, plan string) (string, error) {
	if token != "" {
		return token, nil
	}
	if secret == "" {
		return "", errors.New("no token: pass -token, set GENIUS_TOKEN, or set JWT_SECRET to mint a dev token")
	}
	return middleware.NewJWTAuth(secret).GenerateAccessToken(userID, plan, 24*time.Hour)
}

func main() {
	server := flag.String("server", "http://localhost:8080", "conversation API base URL")
	token := flag.String("token", os.Getenv("GENIUS_TOKEN"), "bearer token (defaults to $GENIUS_TOKEN)")
	userID := flag.String("user", "dev-user", "user id for a minted dev token")
	plan := flag.String("plan", models.PlanFree, "plan claim for a minted dev token")
	flag.Parse()

	bearer, err := resolveToken(*token, os.Getenv("JWT_SECRET"), *userID, *plan)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	api := client.New(*server, bearer)
	var usageLine string
	conv := client.NewConversation(api,
		func(message string) {
			fmt.Fprintf(os.Stderr, "! %s\n", message)
		},
		func(ctx context.Context) {
			usageLine = ""
			status, err := api.Usage(ctx)
			if err != nil {
				return
			}
			if status.Unlimited {
				usageLine = "  (pro plan)"
				return
			}
			usageLine = fmt.Sprintf("  (%d/%d free generations left)", status.Remaining, status.Limit)
		},
	)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}

		conv.SetInput(strings.TrimSpace(scanner.Text()))
		err := conv.Submit(ctx)
		if errors.Is(err, client.ErrEmptyPrompt) {
			continue
		}
		if err == nil {
			history := conv.History()
			fmt.Println(history[len(history)-1].Content)
		}
		if usageLine != "" {
			fmt.Println(usageLine)
		}
		if ctx.Err() != nil {
			return
		}
	}
}
