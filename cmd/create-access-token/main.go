// Command create-access-token mints a scoped API token for a technical
// account, signed with the locally held key. Administrative tool; the token
// is printed once and never stored here.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	jwtkit "github.com/sixgroup-security/guardian-backend/jwt"
)

var log = logrus.New()

func main() {
	name := flag.String("n", "", "name of the newly created token")
	account := flag.String("a", "", "technical account the token is created for")
	scopes := flag.String("s", "", "comma-separated scopes the token carries")
	expiration := flag.String("e", "", "expiration date (YYYY-MM-DD), defaults to 90 days")
	keysPath := flag.String("keys", "", "directory holding keys.json (default "+jwtkit.DefaultAuthKeysPath+")")
	flag.Parse()

	if *name == "" || *account == "" || *scopes == "" {
		flag.Usage()
		os.Exit(1)
	}

	ttl := 90 * 24 * time.Hour
	if *expiration != "" {
		t, err := time.Parse("2006-01-02", *expiration)
		if err != nil {
			log.WithError(err).Fatal("invalid expiration date")
		}
		if !t.After(time.Now()) {
			log.Fatal("expiration time must be in the future")
		}
		ttl = time.Until(t)
	}

	signer, err := jwtkit.LoadSigner(*keysPath)
	if err != nil {
		log.WithError(err).Fatal("could not load signing key")
	}

	token, err := jwtkit.Mint(context.Background(), signer, jwtkit.MintOptions{
		Subject:  *account,
		Issuer:   strings.TrimSpace(os.Getenv("ISSUER")),
		Audience: strings.TrimSpace(os.Getenv("AUDIENCE")),
		Type:     jwtkit.TokenTypeAPI,
		Name:     *name,
		Scopes:   strings.Split(*scopes, ","),
		TTL:      ttl,
	})
	if err != nil {
		log.WithError(err).Fatal("could not mint token")
	}
	fmt.Printf("Newly created token: %s\n", token)
}
