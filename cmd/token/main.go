// File: cmd/token/main.go
// Mints a bearer token for calling the HTTP API, e.g. for an operator
// working the manual-resolution queue.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/joho/godotenv"

	"chat-subscription-payments/internal/config"
	"chat-subscription-payments/internal/infra/api"
)

func main() {
	sub := flag.String("sub", "", "token subject (user id, or operator name)")
	role := flag.String("role", api.RoleOperator, "token role: user|operator")

	_ = godotenv.Load()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *sub == "" {
		log.Fatal("-sub is required")
	}
	if *role != api.RoleUser && *role != api.RoleOperator {
		log.Fatalf("unknown role %q", *role)
	}

	tok, err := api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL).Issue(*sub, *role)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(tok)
}
