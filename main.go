package main

import (
	"encoding/json"
	"flag"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

var db *sqlx.DB
var registry *Registry
var logStore *LogStore
var globalNarrator Narrator
var appConfig AppConfig
var devMode bool

// logError logs an error with context and dumps the message store in dev mode
func logError(context string, err error) {
	log.Printf("ERROR [%s]: %v", context, err)
	if devMode {
		LogStoreState(context, logStore)
	}
}

// handleStatus reports the server's live counts, mostly for health checks.
func handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	registry.mu.Lock()
	status := struct {
		Players int `json:"players"`
		Rooms   int `json:"rooms"`
	}{len(registry.users), len(registry.rooms)}
	registry.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		logError("handleStatus: encode", err)
	}
}

func main() {
	flags := registerFlags()
	flag.Parse()

	appConfig = loadConfig(*flags.configPath)
	flags.applyTo(&appConfig)
	devMode = appConfig.Dev

	// Set up logging to both stdout and file
	logFile, err := os.OpenFile("werewolf.log", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		log.Fatal("Failed to open log file:", err)
	}
	defer logFile.Close()
	log.SetOutput(io.MultiWriter(os.Stdout, logFile))

	logger, err := NewAppLogger(appConfig.toLogConfig())
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	appLogger = logger
	defer CloseAppLogger()

	if appLogger.IsEnabled() {
		log.Println("Extended logging enabled")
	}

	db, err = sqlx.Connect("sqlite3", appConfig.DB)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	logStore, err = NewLogStore(db)
	if err != nil {
		log.Fatal("Failed to initialize message store:", err)
	}

	registry = NewRegistry()
	globalNarrator = initNarrator(appConfig)

	// Start WebSocket hub
	go hub.run()

	http.HandleFunc("/", handleStatus)
	http.HandleFunc("/ws", handleWebSocket)

	log.Println("Server starting on", appConfig.Addr)
	log.Fatal(http.ListenAndServe(appConfig.Addr, nil))
}
