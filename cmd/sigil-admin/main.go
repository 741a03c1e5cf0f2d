// ABOUTME: Command-line client for sigil-gateway key management and login
// ABOUTME: Keeps secret keys in a local keyring and signs challenges locally

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/sigil/internal/client"
	"github.com/2389/sigil/internal/lattice"
)

const banner = `
     _       _ _                 _           _
 ___(_) __ _(_) |       __ _  __| |_ __ ___ (_)_ __
/ __| |/ _' | | |_____ / _' |/ _' | '_ ' _ \| | '_ \
\__ \ | (_| | | |_____| (_| | (_| | | | | | | | | | |
|___/_|\__, |_|_|      \__,_|\__,_|_| |_| |_|_|_| |_|
       |___/
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// SIGIL_GATEWAY_URL takes a full URL, or SIGIL_GATEWAY_HOST derives an http:// URL
	baseURL := os.Getenv("SIGIL_GATEWAY_URL")
	if baseURL == "" {
		if host := os.Getenv("SIGIL_GATEWAY_HOST"); host != "" {
			baseURL = "http://" + host
		} else {
			baseURL = "http://localhost:8080"
		}
	}

	keyDir, err := client.DefaultKeyringDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cli := &app{
		client:  client.New(baseURL, nil),
		keyring: client.NewKeyring(keyDir),
		baseURL: baseURL,
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "scheme":
		err = cli.cmdScheme(ctx)
	case "keygen":
		err = cli.cmdKeygen(ctx, args)
	case "enroll":
		err = cli.cmdEnroll(ctx, args)
	case "register":
		err = cli.cmdRegister(ctx, args)
	case "login":
		err = cli.cmdLogin(ctx, args)
	case "whoami", "me":
		err = cli.cmdWhoami(ctx)
	case "logout":
		err = cli.cmdLogout(ctx)
	case "principals":
		err = cli.cmdPrincipals(ctx, args)
	case "keys":
		err = cli.cmdKeys(args)
	case "crack":
		err = cli.cmdCrack(ctx, args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: sigil-admin <command> [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  scheme                 Show the gateway's signature scheme")
	fmt.Println("  keygen <id>            Generate a key pair locally")
	fmt.Println("  enroll <id>            Register a locally generated public key")
	fmt.Println("  register <id>          Have the gateway generate and register a key pair")
	fmt.Println("  login <id>             Sign a challenge and save the session token")
	fmt.Println("  whoami                 Show the current session")
	fmt.Println("  logout                 Revoke the current session")
	fmt.Println("  principals [id]        List registered principals or show one")
	fmt.Println("  keys [delete <id>]     List or delete local keys")
	fmt.Println("  crack <id> [--save]    Recover a toy-scheme secret from its public key")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  SIGIL_GATEWAY_URL      Gateway URL (default http://localhost:8080)")
	fmt.Println("  SIGIL_KEYRING          Key directory (default ~/.config/sigil/keys)")
	fmt.Println("  SIGIL_TOKEN            Session token (default read from ~/.config/sigil/token)")
}

type app struct {
	client  *client.Client
	keyring *client.Keyring
	baseURL string
}

func requireID(args []string, usage string) (string, error) {
	if len(args) < 1 || strings.HasPrefix(args[0], "-") {
		return "", fmt.Errorf("usage: sigil-admin %s", usage)
	}
	return args[0], nil
}

func hasFlag(args []string, names ...string) bool {
	for _, a := range args {
		for _, n := range names {
			if a == n {
				return true
			}
		}
	}
	return false
}

func (a *app) cmdScheme(ctx context.Context) error {
	info, err := a.client.Scheme(ctx)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Println("Gateway Scheme")
	cyan.Println("--------------")
	fmt.Printf("URL:             %s\n", a.baseURL)
	fmt.Printf("Scheme:          %s\n", info.Name)
	fmt.Printf("Public key size: %d bytes\n", info.PublicKeySize)
	if info.Toy != nil {
		fmt.Printf("Modulus:         %d\n", info.Toy.Q)
		fmt.Printf("Dimension:       %d\n", len(info.Toy.Matrix))
		fmt.Printf("Coefficients:    [%d, %d]\n", info.Toy.Low, info.Toy.High)
		fmt.Printf("Digest:          %s\n", info.Toy.Digest)
		fmt.Println()
		yellow.Println("The toy scheme is insecure; see `sigil-admin crack`.")
	}
	return nil
}

func (a *app) cmdKeygen(ctx context.Context, args []string) error {
	id, err := requireID(args, "keygen <principal-id> [--force]")
	if err != nil {
		return err
	}
	if _, err := a.keyring.Load(id); err == nil && !hasFlag(args, "--force", "-f") {
		return fmt.Errorf("a key for %s already exists in %s (use --force to replace)", id, a.keyring.Dir())
	}

	info, err := a.client.Scheme(ctx)
	if err != nil {
		return fmt.Errorf("fetching scheme: %w", err)
	}
	key, err := client.GenerateKey(id, info)
	if err != nil {
		return err
	}
	if err := a.keyring.Save(key); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ Generated %s key for %s\n", info.Name, id)
	fmt.Printf("  Fingerprint: %s\n", key.Fingerprint)
	fmt.Printf("  Keyring:     %s\n", a.keyring.Dir())
	fmt.Println()
	fmt.Printf("Next: sigil-admin enroll %s\n", id)
	return nil
}

func (a *app) cmdEnroll(ctx context.Context, args []string) error {
	id, err := requireID(args, "enroll <principal-id>")
	if err != nil {
		return err
	}
	key, err := a.keyring.Load(id)
	if err != nil {
		return err
	}

	reg, err := a.client.Enroll(ctx, id, key.PublicKey)
	if err != nil {
		return err
	}

	color.New(color.FgGreen).Printf("✓ Enrolled %s\n", reg.PrincipalID)
	fmt.Printf("  Fingerprint: %s\n", reg.Fingerprint)
	return nil
}

func (a *app) cmdRegister(ctx context.Context, args []string) error {
	id, err := requireID(args, "register <principal-id>")
	if err != nil {
		return err
	}

	info, err := a.client.Scheme(ctx)
	if err != nil {
		return fmt.Errorf("fetching scheme: %w", err)
	}
	reg, err := a.client.Register(ctx, id)
	if err != nil {
		return err
	}
	key, err := client.KeyFromRegistration(reg, info)
	if err != nil {
		return err
	}
	if err := a.keyring.Save(key); err != nil {
		// The gateway keeps no copy of the secret.
		fmt.Fprintf(os.Stderr, "could not save key, secret key follows:\n%x\n", reg.SecretKey)
		return err
	}

	color.New(color.FgGreen).Printf("✓ Registered %s\n", id)
	fmt.Printf("  Fingerprint: %s\n", reg.Fingerprint)
	fmt.Printf("  Secret key saved to %s\n", a.keyring.Dir())
	return nil
}

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	id, err := requireID(args, "login <principal-id>")
	if err != nil {
		return err
	}
	key, err := a.keyring.Load(id)
	if err != nil {
		return err
	}

	session, err := a.client.Authenticate(ctx, key)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("✓ %s as %s\n", session.Message, session.PrincipalID)
	if session.Token == "" {
		color.New(color.FgYellow).Println("  gateway issued no session token")
		return nil
	}

	tokenPath, err := tokenFilePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(tokenPath), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(tokenPath, []byte(session.Token), 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	fmt.Printf("  Token saved to %s", tokenPath)
	if session.ExpiresAt != nil {
		fmt.Printf(" (expires %s)", session.ExpiresAt.Local().Format(time.Kitchen))
	}
	fmt.Println()
	return nil
}

func (a *app) cmdWhoami(ctx context.Context) error {
	token, err := getToken()
	if err != nil {
		return err
	}

	info, err := a.client.Session(ctx, token)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	cyan.Println("Session")
	cyan.Println("-------")
	fmt.Printf("Principal:  %s\n", info.PrincipalID)
	fmt.Printf("Session ID: %s\n", info.SessionID)
	fmt.Printf("Expires:    %s (%s)\n", info.ExpiresAt.Local().Format(time.RFC1123), time.Until(info.ExpiresAt).Round(time.Second))
	return nil
}

func (a *app) cmdLogout(ctx context.Context) error {
	token, err := getToken()
	if err != nil {
		return err
	}

	if err := a.client.Logout(ctx, token); err != nil {
		return err
	}

	if tokenPath, err := tokenFilePath(); err == nil {
		_ = os.Remove(tokenPath)
	}
	color.New(color.FgGreen).Println("✓ Logged out")
	return nil
}

func (a *app) cmdPrincipals(ctx context.Context, args []string) error {
	if len(args) > 0 {
		reg, err := a.client.Principal(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Principal:   %s\n", reg.PrincipalID)
		fmt.Printf("Scheme:      %s\n", reg.Scheme)
		fmt.Printf("Fingerprint: %s\n", reg.Fingerprint)
		fmt.Printf("Public key:  %d bytes\n", len(reg.PublicKey))
		fmt.Printf("Created:     %s\n", reg.CreatedAt.Local().Format(time.RFC1123))
		return nil
	}

	regs, err := a.client.Principals(ctx)
	if err != nil {
		return err
	}
	if len(regs) == 0 {
		fmt.Println("No principals registered")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRINCIPAL\tSCHEME\tFINGERPRINT\tCREATED")
	for _, r := range regs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.PrincipalID, r.Scheme, truncate(r.Fingerprint, 24), r.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func (a *app) cmdKeys(args []string) error {
	if len(args) >= 2 && args[0] == "delete" {
		if err := a.keyring.Delete(args[1]); err != nil {
			return err
		}
		color.New(color.FgGreen).Printf("✓ Deleted key for %s\n", args[1])
		return nil
	}

	keys, err := a.keyring.List()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		fmt.Printf("No keys in %s\n", a.keyring.Dir())
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PRINCIPAL\tSCHEME\tFINGERPRINT\tCREATED")
	for _, k := range keys {
		scheme := "?"
		if k.Scheme != nil {
			scheme = k.Scheme.Name
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", k.PrincipalID, scheme, truncate(k.Fingerprint, 24), k.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

// cmdCrack recovers a working secret for a toy-scheme principal from the
// public key alone.
func (a *app) cmdCrack(ctx context.Context, args []string) error {
	id, err := requireID(args, "crack <principal-id> [--save]")
	if err != nil {
		return err
	}

	info, err := a.client.Scheme(ctx)
	if err != nil {
		return fmt.Errorf("fetching scheme: %w", err)
	}
	if info.Name != lattice.SchemeToy {
		return fmt.Errorf("gateway uses %s; only the toy scheme can be recovered by search", info.Name)
	}
	scheme, err := info.Build()
	if err != nil {
		return err
	}
	toy, ok := scheme.(*lattice.ToyScheme)
	if !ok {
		return fmt.Errorf("scheme %s does not support recovery", info.Name)
	}

	reg, err := a.client.Principal(ctx, id)
	if err != nil {
		return err
	}
	pk, err := toy.DecodePublicKey(reg.PublicKey)
	if err != nil {
		return err
	}

	size, bounded := toy.KeyspaceSize()
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)

	cyan.Printf("Searching for %s's secret\n", id)
	fmt.Printf("  Public key: %v\n", pk)
	if bounded {
		fmt.Printf("  Keyspace:   %d candidates\n", size)
	} else {
		fmt.Printf("  Keyspace:   more than 2^64 candidates\n")
	}

	start := time.Now()
	lastReport := start
	secret, err := toy.RecoverSecret(ctx, pk, func(c lattice.Candidate) {
		if now := time.Now(); now.Sub(lastReport) >= 250*time.Millisecond {
			lastReport = now
			gray.Printf("\r  tried %d candidates, at %v", c.Tried, c.Vector)
		}
	})
	fmt.Println()
	if err != nil {
		if errors.Is(err, lattice.ErrNotRecovered) {
			return fmt.Errorf("no secret in [%d, %d]^%d matches; the key was not made by this scheme", info.Toy.Low, info.Toy.High, len(info.Toy.Matrix))
		}
		return err
	}

	green.Printf("✓ Recovered secret %v in %s\n", secret, time.Since(start).Round(time.Millisecond))

	if !hasFlag(args, "--save") {
		fmt.Printf("  Re-run with --save to store it and log in as %s\n", id)
		return nil
	}

	sk, err := toy.EncodeSecretKey(secret)
	if err != nil {
		return err
	}
	key := &client.Key{
		PrincipalID: id,
		Scheme:      info,
		PublicKey:   reg.PublicKey,
		SecretKey:   sk,
		Fingerprint: reg.Fingerprint,
		CreatedAt:   time.Now().UTC(),
	}
	if err := a.keyring.Save(key); err != nil {
		return err
	}
	fmt.Printf("  Saved to %s; try: sigil-admin login %s\n", a.keyring.Dir(), id)
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func tokenFilePath() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not determine config directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "sigil", "token"), nil
}

// getToken returns the session token from SIGIL_TOKEN or ~/.config/sigil/token.
func getToken() (string, error) {
	if token := os.Getenv("SIGIL_TOKEN"); token != "" {
		return token, nil
	}

	tokenPath, err := tokenFilePath()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(tokenPath)
	if errors.Is(err, os.ErrNotExist) {
		return "", errors.New("not logged in (run sigil-admin login <id>)")
	}
	if err != nil {
		return "", fmt.Errorf("reading token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
