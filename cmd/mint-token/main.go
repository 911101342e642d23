// Command mint-token issues an admin API bearer token. The service has no
// login flow; operators mint tokens out of band and pass them in the
// Authorization header.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/mirrorline/futureself/pkg/auth"
)

func main() {
	userID := flag.String("user", "operator", "user id to embed in the token")
	email := flag.String("email", "", "email to embed in the token")
	role := flag.String("role", "admin", "role claim")
	ttl := flag.Int("ttl", 60, "token lifetime in minutes")
	flag.Parse()

	_ = godotenv.Load(".env")

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is not set")
	}
	issuer := os.Getenv("JWT_ISSUER")
	if issuer == "" {
		issuer = "mirrorline-futureself"
	}
	audience := os.Getenv("JWT_AUDIENCE")
	if audience == "" {
		audience = "futureself-api"
	}

	token, expiresAt, err := auth.GenerateAccessToken(*userID, *email, *role, secret, issuer, audience, *ttl)
	if err != nil {
		log.Fatalf("Failed to mint token: %v", err)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", expiresAt.Format("2006-01-02 15:04:05 MST"))
}
