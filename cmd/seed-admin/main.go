package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/playearn/backend/internal/admin"
	"github.com/playearn/backend/internal/config"
	"github.com/playearn/backend/internal/database"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	email := flag.String("email", os.Getenv("ADMIN_EMAIL"), "email of an existing account to promote")
	roles := flag.String("roles", "super_admin", "comma-separated roles")
	flag.Parse()

	if *email == "" {
		log.Fatalf("An email is required (-email or ADMIN_EMAIL). The account must sign up first.")
	}

	cfg := config.Load()
	ctx := context.Background()

	db, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	var list []string
	for _, r := range strings.Split(*roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			list = append(list, r)
		}
	}

	userID, err := admin.GrantAdmin(ctx, db, *email, list)
	if err != nil {
		log.Fatalf("Failed to grant admin: %v", err)
	}

	log.Printf("✓ Admin access granted")
	log.Printf("  Email: %s", *email)
	log.Printf("  User ID: %s", userID)
	log.Printf("  Roles: %v", list)
}
