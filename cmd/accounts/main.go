package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aussiebroadwan/coachdesk/internal/accounts/app"
)

func main() {
	cfg := app.LoadConfig()

	// accounts token -sub ops@example.com -role super_admin
	if len(os.Args) > 1 && os.Args[1] == "token" {
		mintToken(cfg, os.Args[2:])
		return
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

func mintToken(cfg app.Config, args []string) {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	sub := fs.String("sub", "", "operator identity recorded as invitedBy/blockedBy")
	role := fs.String("role", "super_admin", "super_admin or coach_manager")
	ttl := fs.Duration("ttl", 12*time.Hour, "token lifetime")
	_ = fs.Parse(args)

	if *sub == "" {
		log.Fatal("-sub is required")
	}

	token, exp, err := app.MintAdminToken(cfg, *sub, *role, *ttl)
	if err != nil {
		log.Fatalf("failed to mint token: %v", err)
	}
	fmt.Fprintf(os.Stderr, "expires %s\n", exp.Format(time.RFC3339))
	fmt.Println(token)
}
