// whoami is an operator probe for the console's upstream. It keeps a token
// in the user config dir, restores the session the way the gateway does, and
// prints who that token belongs to.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/leonanthomaz/firecloud-console/internal/session"
	"github.com/leonanthomaz/firecloud-console/internal/tokenstore"
	"github.com/leonanthomaz/firecloud-console/internal/upstream"
)

func main() {
	var (
		identifier = flag.String("login", "", "identifier to log in with (prompts FIRECLOUD_PASSWORD from env)")
		logout     = flag.Bool("logout", false, "discard the stored token")
	)
	flag.Parse()

	baseURL := os.Getenv("FIRECLOUD_UPSTREAM_URL")
	if baseURL == "" {
		log.Fatal("FIRECLOUD_UPSTREAM_URL is required")
	}

	path, err := tokenstore.DefaultPath()
	if err != nil {
		log.Fatalf("token path: %v", err)
	}
	tokens, err := tokenstore.NewFile(path)
	if err != nil {
		log.Fatalf("token store: %v", err)
	}

	backend := upstream.New(baseURL,
		upstream.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}),
	)
	sess := session.New(backend, tokens)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if *logout {
		sess.Logout(ctx)
		fmt.Println("logged out")
		return
	}

	if *identifier != "" {
		password := os.Getenv("FIRECLOUD_PASSWORD")
		if password == "" {
			log.Fatal("FIRECLOUD_PASSWORD is required with -login")
		}
		if err := sess.Login(ctx, *identifier, password); err != nil {
			log.Fatalf("login: %v", err)
		}
	} else {
		sess.Bootstrap(ctx)
	}

	if !sess.IsAuthenticated() {
		fmt.Println("not logged in (stored token missing, expired or rejected)")
		os.Exit(1)
	}

	user, _ := sess.User()
	fmt.Printf("user:    %s %s <%s>\n", user.FirstName, user.LastName, user.Email)
	fmt.Printf("admin:   %v\n", user.Admin)
	if company := sess.Company(); company != nil {
		fmt.Printf("company: %s (%s, plan %d)\n", company.Name, company.Status, company.PlanID)
	}
}
