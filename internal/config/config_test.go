package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
		},
		Database: DatabaseConfig{
			Host:   "localhost",
			User:   "test",
			DBName: "test",
		},
		Google: GoogleConfig{
			ClientID:     "test",
			ClientSecret: "test",
			UserEmail:    "me@example.com",
		},
		Mailbox: MailboxConfig{
			Query:       "has:attachment invoice",
			MarkerLabel: "invoice-vault/archived",
		},
		Archive: ArchiveConfig{
			FolderName: "Invoice Vault",
		},
		Ledger: LedgerConfig{
			SpreadsheetName: "Invoice Vault Ledger",
		},
		Scheduler: SchedulerConfig{
			IntervalMinutes: 15,
		},
	}
}

func TestConfigValidation(t *testing.T) {
	config := validConfig()
	assert.NoError(t, config.Validate())

	// Missing server port
	invalid := validConfig()
	invalid.Server.Port = ""
	assert.Error(t, invalid.Validate())

	// Missing Google client credentials
	invalid = validConfig()
	invalid.Google.ClientSecret = ""
	assert.Error(t, invalid.Validate())

	// Gmail mode requires the user email
	invalid = validConfig()
	invalid.Google.UserEmail = ""
	assert.Error(t, invalid.Validate())

	// IMAP mode requires IMAP credentials but not the user email
	imapConfig := validConfig()
	imapConfig.Google.UserEmail = ""
	imapConfig.Mailbox.UseIMAP = true
	assert.Error(t, imapConfig.Validate())

	imapConfig.Mailbox.IMAPUser = "me@example.com"
	imapConfig.Mailbox.IMAPPassword = "app-password"
	assert.NoError(t, imapConfig.Validate())

	// Missing destinations
	invalid = validConfig()
	invalid.Archive.FolderName = ""
	assert.Error(t, invalid.Validate())

	// Non-positive scan interval
	invalid = validConfig()
	invalid.Scheduler.IntervalMinutes = 0
	assert.Error(t, invalid.Validate())
}

func TestDatabaseDSN(t *testing.T) {
	config := DatabaseConfig{
		Host:     "localhost",
		Port:     3306,
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
	}

	dsn := config.GetDSN()
	expected := "testuser:testpass@tcp(localhost:3306)/testdb?charset=utf8mb4&parseTime=True&loc=Local"
	assert.Equal(t, expected, dsn)
}
