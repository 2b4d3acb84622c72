package main

import "time"

const (
	panelSoftwareName = "grcPanel"

	defaultDataDir     = "data"
	defaultListenAddr  = ":5000"
	defaultRPCHost     = "127.0.0.1"
	defaultRPCPort     = 15715
	defaultRPCTimeout  = 30
	defaultSessionDays = 30

	defaultAppUsername = "admin"

	defaultRefreshIntervalMS = 10000
	minRefreshIntervalMS     = 1000
	defaultWatchIntervalSecs = 30
	defaultCacheTTLMS        = 2000

	defaultTransactionCount = 20
	maxTransactionCount     = 1000

	// Lifetime of a token issued without "remember me". The cookie itself
	// lasts for the browser session.
	shortSessionTTL = 12 * time.Hour

	sessionCookieName = "grcpanel_session"
	flashCookieName   = "grcpanel_flash"

	preferenceKeyAutoRefresh = "autoRefresh"

	consoleHistoryLimit   = 50
	consoleHistoryVisible = 10
	consoleTranscriptMax  = 200

	// Confirmations at which a transaction badge turns green.
	confirmedDepth = 6
)

var defaultRefreshIntervalsMS = []int{5000, 10000, 30000, 60000}

var transactionCountChoices = []int{10, 20, 50, 100}

var consoleQuickCommands = []string{
	"getinfo",
	"getwalletinfo",
	"getstakinginfo",
	"getmininginfo",
	"getpeerinfo",
	"beaconstatus",
	"superblockage",
	"listpolls",
	"help",
}

// buildTime can be set at build time with:
//
//	go build -ldflags="-X main.buildTime=2025-01-02T15:04:05Z"
var buildTime = ""
