// cmd/adduser/main.go
// Creates or updates an account, optionally enrolling it in a pool.
//
// Usage:
//
//	go run ./cmd/adduser -username padraic -password testing -pool 1
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/padraicbc/racepool/config"
	bundb "github.com/padraicbc/racepool/db"
	"github.com/padraicbc/racepool/handlers"
	"github.com/padraicbc/racepool/models"
	"github.com/padraicbc/racepool/store"
)

func main() {
	username := flag.String("username", "", "username (required)")
	password := flag.String("password", "", "plain-text password (required)")
	poolID := flag.Int64("pool", 0, "pool to enroll the account in")
	displayName := flag.String("display", "", "display name in the pool (defaults to username)")
	flag.Parse()

	hash, err := handlers.HashPasswordForUser(*username, *password)
	if err != nil {
		log.Fatal("both -username and -password are required: ", err)
	}

	ctx := context.Background()
	cfg := config.Load()
	db := bundb.Setup(cfg)
	defer db.Close()

	if err := bundb.CreateTables(ctx, db); err != nil {
		log.Fatal("create tables: ", err)
	}

	st := store.New(db)
	user := &models.User{Username: *username, Password: hash}
	if err := st.SaveUser(ctx, user); err != nil {
		log.Fatal("save user: ", err)
	}
	fmt.Printf("user %q saved (id %d)\n", *username, user.ID)

	if *poolID == 0 {
		return
	}
	name := *displayName
	if name == "" {
		name = *username
	}
	m, err := st.AddAccountMember(ctx, *poolID, user.ID, name)
	if err != nil {
		log.Fatal("enroll: ", err)
	}
	fmt.Printf("member %s in pool %d\n", m.ID, *poolID)
}
