package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/stemsi/tolcsim-backend/internal/config"
	"github.com/stemsi/tolcsim-backend/internal/service"
	"golang.org/x/term"
)

// issue-token mints a bearer token for local testing against the API.
// In production tokens come from the identity provider sharing JWT_SECRET.
func main() {
	var (
		userID    string
		email     string
		ttl       time.Duration
		askSecret bool
	)
	flag.StringVar(&userID, "user", "", "User id to put in the token subject")
	flag.StringVar(&email, "email", "", "Optional email claim")
	flag.DurationVar(&ttl, "ttl", 0, "Token lifetime (defaults to JWT_EXPIRY_HOURS)")
	flag.BoolVar(&askSecret, "prompt-secret", false, "Read the signing secret from the terminal instead of JWT_SECRET")
	flag.Parse()

	cfg := config.Load()

	reader := bufio.NewReader(os.Stdin)
	if userID == "" {
		fmt.Print("Enter User ID: ")
		line, _ := reader.ReadString('\n')
		userID = strings.TrimSpace(line)
	}
	if userID == "" {
		fmt.Println("Error: user id is required")
		os.Exit(1)
	}

	if askSecret {
		fmt.Print("Enter JWT secret: ")
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			fmt.Printf("Error reading secret: %v\n", err)
			os.Exit(1)
		}
		cfg.JWTSecret = strings.TrimSpace(string(secret))
	}

	token, err := service.NewAuthService(cfg).GenerateToken(userID, email, ttl)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
