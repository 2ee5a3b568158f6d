package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/ManuelReschke/CVFox/app/repository"
	"github.com/ManuelReschke/CVFox/internal/pkg/database"
	"github.com/ManuelReschke/CVFox/internal/pkg/env"
	"github.com/ManuelReschke/CVFox/internal/pkg/seed"
)

func main() {
	env.SetupEnvFile()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	database.SetupDatabase()
	seeder := seed.New(repository.NewRepositories(database.GetDB(), nil))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch os.Args[1] {
	case "user":
		fs := flag.NewFlagSet("user", flag.ExitOnError)
		admin := fs.Bool("admin", false, "grant the operator role")
		_ = fs.Parse(os.Args[2:])
		if fs.NArg() != 3 {
			log.Fatalf("user needs <name> <email> <password>")
		}
		u, err := seeder.CreateUser(fs.Arg(0), fs.Arg(1), fs.Arg(2), *admin)
		if err != nil {
			log.Fatalf("Failed to create user: %v", err)
		}
		log.Printf("Created user %d (%s, role %s)", u.ID, u.Email, u.Role)

	case "org":
		if len(os.Args) != 4 {
			log.Fatalf("org needs <owner-email> <name>")
		}
		org, err := seeder.CreateOrganization(os.Args[2], os.Args[3])
		if err != nil {
			log.Fatalf("Failed to create organization: %v", err)
		}
		log.Printf("Created organization %d (%s)", org.ID, org.Name)

	case "invite":
		if len(os.Args) != 5 {
			log.Fatalf("invite needs <org-id> <inviter-email> <email>")
		}
		orgID, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			log.Fatalf("Invalid organization id: %v", err)
		}
		inv, err := seeder.Invite(ctx, uint(orgID), os.Args[3], os.Args[4])
		if err != nil {
			log.Fatalf("Failed to create invitation: %v", err)
		}
		log.Printf("Created invitation %s for %s", inv.PublicID, inv.Email)

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: go run ./cmd/seed [command]")
	fmt.Println("Commands:")
	fmt.Println("  user [-admin] NAME EMAIL PASSWORD - create an active account")
	fmt.Println("  org OWNER_EMAIL NAME              - create an organization")
	fmt.Println("  invite ORG_ID INVITER_EMAIL EMAIL - create a pending invitation")
}
