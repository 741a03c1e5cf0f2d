// ABOUTME: Entry point for sigil-gateway, the lattice-signature login server
// ABOUTME: Serves register, challenge, and login over HTTP and writes starter configs

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/sigil/internal/config"
	"github.com/2389/sigil/internal/gateway"
	"github.com/2389/sigil/internal/lattice"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
     _       _ _
 ___(_) __ _(_) |
/ __| |/ _' | | |
\__ \ | (_| | | |
|___/_|\__, |_|_|
       |___/
`

// getConfigPath returns the path to the gateway config file.
// Priority: SIGIL_CONFIG env var > XDG_CONFIG_HOME/sigil/gateway.yaml > ~/.config/sigil/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("SIGIL_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "sigil", "gateway.yaml")
}

// getDataPath returns the path to the sigil data directory.
// Priority: XDG_DATA_HOME/sigil > ~/.local/share/sigil
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "sigil")
}

// loadConfig reads the config file, falling back to built-in defaults when
// it does not exist.
func loadConfig(path string) (*config.Config, bool, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return config.Default(), false, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, false, fmt.Errorf("loading config: %w", err)
	}
	return cfg, true, nil
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: sigil-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve    Start the gateway server")
		fmt.Println("  init     Create a new config file interactively")
		fmt.Println("  health   Check gateway health")
		fmt.Println("  ready    Check gateway readiness")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealthCheck(ctx, "/health")
	case "ready":
		err = runHealthCheck(ctx, "/health/ready")
	case "version", "--version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, fromFile, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	if fromFile {
		fmt.Printf("Config:    %s\n", configPath)
	} else {
		fmt.Print("Config:    ")
		yellow.Println("built-in defaults")
	}
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Scheme:    ")
	if cfg.Scheme.Name == lattice.SchemeToy {
		yellow.Printf("%s (insecure, q=%d n=%d)\n", cfg.Scheme.Name, cfg.Scheme.Toy.Q, cfg.Scheme.Toy.N)
	} else {
		cyan.Println(cfg.Scheme.Name)
	}
	green.Print("    ▶ ")
	fmt.Printf("Store:     %s", cfg.Database.Driver)
	if cfg.Database.Driver == config.DriverSQLite {
		gray.Printf(" (%s)", cfg.Database.Path)
	}
	fmt.Println()
	if cfg.Auth.JWTSecret == "" {
		green.Print("    ▶ ")
		fmt.Print("Sessions:  ")
		yellow.Println("disabled (no auth.jwt_secret)")
	}
	fmt.Println()

	logger.Info("starting sigil-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"scheme", cfg.Scheme.Name,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func runHealthCheck(ctx context.Context, path string) error {
	cfg, _, err := loadConfig(getConfigPath())
	if err != nil {
		return err
	}

	addr := cfg.Server.HTTPAddr
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	url := fmt.Sprintf("http://%s%s", addr, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	fmt.Println(strings.TrimSpace(string(body)))
	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("sigil-gateway configuration setup")
	fmt.Println("=================================")
	fmt.Println()

	defaultConfigPath := getConfigPath()
	defaultDbPath := filepath.Join(getDataPath(), "gateway.db")

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8080")

	fmt.Println("\n--- Store Configuration ---")
	driver := prompt(reader, "Store driver (memory/sqlite)", config.DriverSQLite)
	var dbPath string
	if driver == config.DriverSQLite {
		dbPath = prompt(reader, "SQLite database path", defaultDbPath)
	}

	fmt.Println("\n--- Signature Scheme ---")
	scheme := prompt(reader, "Scheme (dilithium2/dilithium3/toy)", config.DefaultScheme)

	fmt.Println("\n--- Sessions ---")
	enableSessions := prompt(reader, "Issue session tokens on login?", "yes")
	sessions := strings.ToLower(enableSessions) == "yes" || strings.ToLower(enableSessions) == "y"
	var jwtSecret string
	if sessions {
		secretBytes := make([]byte, 32)
		if _, err := rand.Read(secretBytes); err != nil {
			return fmt.Errorf("generating JWT secret: %w", err)
		}
		jwtSecret = base64.StdEncoding.EncodeToString(secretBytes)
	}

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# sigil-gateway configuration\n")
	cfg.WriteString("# Generated by sigil-gateway init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", httpAddr))
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  driver: \"%s\"\n", driver))
	if dbPath != "" {
		cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
	}
	cfg.WriteString("\n")

	cfg.WriteString("scheme:\n")
	cfg.WriteString(fmt.Sprintf("  name: \"%s\"\n", scheme))
	if scheme == lattice.SchemeToy {
		cfg.WriteString("  toy:\n")
		cfg.WriteString(fmt.Sprintf("    q: %d\n", config.DefaultToyModulus))
		cfg.WriteString(fmt.Sprintf("    n: %d\n", config.DefaultToyDimension))
		cfg.WriteString(fmt.Sprintf("    digest: \"%s\"\n", lattice.DigestSHA3))
		// stored public keys only verify against the matrix they were made with
		matrix, err := lattice.NewToyMatrix(config.DefaultToyDimension, config.DefaultToyModulus, rand.Reader)
		if err != nil {
			return fmt.Errorf("generating toy matrix: %w", err)
		}
		cfg.WriteString(formatToyMatrix(matrix))
	}
	cfg.WriteString("\n")

	cfg.WriteString("challenge:\n")
	cfg.WriteString(fmt.Sprintf("  ttl: \"%s\"\n", config.DefaultChallengeTTL))
	cfg.WriteString("\n")

	if sessions {
		cfg.WriteString("auth:\n")
		cfg.WriteString(fmt.Sprintf("  jwt_secret: \"%s\"\n", jwtSecret))
		cfg.WriteString(fmt.Sprintf("  token_ttl: \"%s\"\n", config.DefaultTokenTTL))
		cfg.WriteString("\n")
	}

	cfg.WriteString("rate_limit:\n")
	cfg.WriteString("  rps: 1\n")
	cfg.WriteString("  burst: 5\n")
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))
	cfg.WriteString("\n")

	cfg.WriteString("metrics:\n")
	cfg.WriteString("  enabled: true\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", config.DefaultMetricsPath))

	configDir := filepath.Dir(outputFile)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// The file carries the JWT secret.
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}
	}

	// Make sure what we wrote loads.
	if _, err := config.Load(outputFile); err != nil {
		return fmt.Errorf("generated config is invalid: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  sigil-gateway serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}

func formatToyMatrix(m lattice.Matrix) string {
	var b strings.Builder
	b.WriteString("    matrix:\n")
	for _, row := range m {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprint(v)
		}
		b.WriteString("      - [" + strings.Join(cells, ", ") + "]\n")
	}
	return b.String()
}
