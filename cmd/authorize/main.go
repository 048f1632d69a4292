// Command authorize performs the first interactive authorization and
// stores the resulting credential, after which the service can refresh it
// on its own.
package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drivev3 "google.golang.org/api/drive/v3"
	gmailv1 "google.golang.org/api/gmail/v1"
	sheetsv4 "google.golang.org/api/sheets/v4"

	"invoice-vault-go/internal/config"
	"invoice-vault-go/internal/credentials"
	"invoice-vault-go/internal/database"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Google.ClientID == "" || cfg.Google.ClientSecret == "" {
		log.Fatal("Please set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET")
	}

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	oauthConfig := &oauth2.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURL,
		Scopes: []string{
			gmailv1.GmailModifyScope,
			drivev3.DriveFileScope,
			sheetsv4.SpreadsheetsScope,
		},
		Endpoint: google.Endpoint,
	}

	authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Printf("Go to the following link in your browser: %v\n", authURL)
	fmt.Println("\nAfter authorization, you'll be redirected to a URL. Copy the 'code' parameter from that URL.")

	var authCode string
	fmt.Print("\nEnter the authorization code: ")
	fmt.Scan(&authCode)

	token, err := oauthConfig.Exchange(context.Background(), authCode)
	if err != nil {
		log.Fatalf("Unable to retrieve token from web: %v", err)
	}

	store := credentials.NewGormStore(db)
	cred := credentials.FromToken(token, strings.Join(oauthConfig.Scopes, " "))
	if err := store.Save(context.Background(), cred); err != nil {
		log.Fatalf("Unable to store credential: %v", err)
	}

	fmt.Println("\nCredential stored. The service will refresh it automatically.")
}
