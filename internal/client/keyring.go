// ABOUTME: Local key storage for sigil principals, one JSON file per principal
// ABOUTME: Keys carry enough scheme parameters to sign challenges offline

package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/2389/sigil/internal/auth"
	"github.com/2389/sigil/internal/lattice"
	"github.com/2389/sigil/internal/store"
)

// ErrKeyNotFound is returned when the keyring holds no key for a principal.
var ErrKeyNotFound = errors.New("key not found")

const keyFileExt = ".key.json"

// SchemeInfo describes a gateway's signature scheme. Toy is set only for the
// toy scheme.
type SchemeInfo struct {
	Name          string   `json:"name"`
	PublicKeySize int      `json:"public_key_size,omitempty"`
	Toy           *ToyInfo `json:"toy,omitempty"`
}

// ToyInfo holds the public toy scheme parameters.
type ToyInfo struct {
	Q      uint32         `json:"q"`
	Matrix lattice.Matrix `json:"matrix"`
	Low    int64          `json:"low"`
	High   int64          `json:"high"`
	Digest string         `json:"digest"`
}

// Build constructs the scheme described by info.
func (info *SchemeInfo) Build() (lattice.Scheme, error) {
	p := lattice.Params{Name: info.Name}
	if info.Name == lattice.SchemeToy {
		if info.Toy == nil {
			return nil, fmt.Errorf("%w: toy scheme without parameters", lattice.ErrInvalidParams)
		}
		digest, err := lattice.DigestByName(info.Toy.Digest)
		if err != nil {
			return nil, err
		}
		p.Toy = lattice.ToyParams{
			Q:      info.Toy.Q,
			Matrix: info.Toy.Matrix,
			Low:    info.Toy.Low,
			High:   info.Toy.High,
			Digest: digest,
		}
	}
	return lattice.New(p)
}

// Key is a principal's key pair as kept on disk.
type Key struct {
	PrincipalID string      `json:"principal_id"`
	Scheme      *SchemeInfo `json:"scheme"`
	PublicKey   []byte      `json:"public_key"`
	SecretKey   []byte      `json:"secret_key"`
	Fingerprint string      `json:"fingerprint"`
	CreatedAt   time.Time   `json:"created_at"`
}

// GenerateKey creates a fresh key pair for principalID under the scheme
// described by info.
func GenerateKey(principalID string, info *SchemeInfo) (*Key, error) {
	if err := auth.ValidatePrincipalID(principalID); err != nil {
		return nil, err
	}
	scheme, err := info.Build()
	if err != nil {
		return nil, fmt.Errorf("building scheme: %w", err)
	}
	kp, err := scheme.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	return &Key{
		PrincipalID: principalID,
		Scheme:      info,
		PublicKey:   kp.PublicKey,
		SecretKey:   kp.SecretKey,
		Fingerprint: store.Fingerprint(kp.PublicKey),
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// KeyFromRegistration wraps a server-side registration, which carries the
// secret key exactly once, into a Key.
func KeyFromRegistration(reg *Registration, info *SchemeInfo) (*Key, error) {
	if len(reg.SecretKey) == 0 {
		return nil, errors.New("registration carries no secret key")
	}
	if info.Name != reg.Scheme {
		return nil, fmt.Errorf("registration scheme %q does not match %q", reg.Scheme, info.Name)
	}
	createdAt := reg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return &Key{
		PrincipalID: reg.PrincipalID,
		Scheme:      info,
		PublicKey:   reg.PublicKey,
		SecretKey:   reg.SecretKey,
		Fingerprint: reg.Fingerprint,
		CreatedAt:   createdAt,
	}, nil
}

// Sign signs message with the key's secret.
func (k *Key) Sign(message []byte) ([]byte, error) {
	if k.Scheme == nil {
		return nil, errors.New("key has no scheme")
	}
	scheme, err := k.Scheme.Build()
	if err != nil {
		return nil, fmt.Errorf("building scheme: %w", err)
	}
	return scheme.Sign(message, k.SecretKey)
}

// Keyring stores keys as files in a directory.
type Keyring struct {
	dir string
}

// NewKeyring returns a keyring rooted at dir. The directory is created on
// first Save.
func NewKeyring(dir string) *Keyring {
	return &Keyring{dir: dir}
}

// DefaultKeyringDir returns the keyring directory.
// Priority: SIGIL_KEYRING env var > XDG_CONFIG_HOME/sigil/keys > ~/.config/sigil/keys
func DefaultKeyringDir() (string, error) {
	if dir := os.Getenv("SIGIL_KEYRING"); dir != "" {
		return dir, nil
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("could not determine config directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "sigil", "keys"), nil
}

// Dir returns the keyring directory.
func (r *Keyring) Dir() string {
	return r.dir
}

func (r *Keyring) path(principalID string) (string, error) {
	if err := auth.ValidatePrincipalID(principalID); err != nil {
		return "", err
	}
	if principalID == "." || principalID == ".." {
		return "", fmt.Errorf("%w: principal id %q cannot be used as a file name", auth.ErrInvalidInput, principalID)
	}
	return filepath.Join(r.dir, principalID+keyFileExt), nil
}

// Save writes key, replacing any existing key for the same principal.
// Files are readable by the owner only.
func (r *Keyring) Save(key *Key) error {
	path, err := r.path(key.PrincipalID)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(r.dir, 0700); err != nil {
		return fmt.Errorf("creating keyring directory: %w", err)
	}

	data, err := json.MarshalIndent(key, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling key: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing key: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing key: %w", err)
	}
	return nil
}

// Load reads the key for principalID.
func (r *Keyring) Load(principalID string) (*Key, error) {
	path, err := r.path(principalID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, principalID)
	}
	if err != nil {
		return nil, fmt.Errorf("reading key: %w", err)
	}

	var key Key
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, fmt.Errorf("parsing key %s: %w", path, err)
	}
	return &key, nil
}

// List returns every key in the keyring ordered by principal ID.
func (r *Keyring) List() ([]*Key, error) {
	entries, err := os.ReadDir(r.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading keyring: %w", err)
	}

	var keys []*Key
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, keyFileExt) {
			continue
		}
		key, err := r.Load(strings.TrimSuffix(name, keyFileExt))
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].PrincipalID < keys[j].PrincipalID })
	return keys, nil
}

// Delete removes the key for principalID.
func (r *Keyring) Delete(principalID string) error {
	path, err := r.path(principalID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrKeyNotFound, principalID)
		}
		return fmt.Errorf("deleting key: %w", err)
	}
	return nil
}
