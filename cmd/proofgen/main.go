// Command proofgen issues and inspects proof tokens for existing
// registrations. It is an operator tool: support staff use it to
// reissue a lost token or to check what a token presented at the door
// actually carries.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/lib/pq"

	"eventpass/config"
	"eventpass/internal/adapters/token"
	"eventpass/internal/repository/postgres"
)

func main() {
	issueID := flag.String("issue", "", "Registration ID to issue a fresh proof token for")
	decode := flag.String("decode", "", "Proof token to decode and print")
	flag.Parse()

	if (*issueID == "") == (*decode == "") {
		fmt.Fprintln(os.Stderr, "usage: proofgen -issue <registration-id> | -decode <token>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	codec := token.NewCodec(cfg.TokenSecret)

	if *decode != "" {
		payload, err := codec.Decode(*decode)
		if err != nil {
			log.Fatalf("Failed to decode token: %v", err)
		}
		fmt.Printf("registration: %s\n", payload.RegistrationID)
		if payload.LegacyRegistrationID != "" {
			fmt.Printf("registration (legacy claim): %s\n", payload.LegacyRegistrationID)
		}
		fmt.Printf("event:        %s\n", payload.EventID)
		fmt.Printf("kind:         %s\n", payload.Kind)
		fmt.Printf("code:         %s\n", payload.UniqueCode)
		if !payload.IssuedAt.IsZero() {
			fmt.Printf("issued at:    %s\n", payload.IssuedAt)
		}
		return
	}

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	reg, err := postgres.NewRegistrationRepository(db).GetByID(context.Background(), *issueID)
	if err != nil {
		log.Fatalf("Failed to load registration %s: %v", *issueID, err)
	}
	serialized, err := codec.Issue(reg)
	if err != nil {
		log.Fatalf("Failed to issue token: %v", err)
	}
	fmt.Println(serialized)
}
