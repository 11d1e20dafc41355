package profile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/ggonzalez94/mfi-cli/internal/config"
	clierr "github.com/ggonzalez94/mfi-cli/internal/errors"
	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"
)

var validName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Loader yields the profile a command runs against.
type Loader interface {
	Load() (Profile, error)
}

// Store keeps one YAML file per profile under <dir>/profiles and the name
// of the active profile in <dir>/active.yaml.
type Store struct {
	dir  string
	lock *flock.Flock
}

// Patch lists profile fields to change; nil fields are left untouched.
type Patch struct {
	Cluster       *config.Cluster
	KeypairPath   *string
	RPCURL        *string
	ProgramID     *solana.PublicKey
	Commitment    *rpc.CommitmentType
	MarginfiGroup *solana.PublicKey
}

type fileProfile struct {
	Name          string `yaml:"name"`
	Cluster       string `yaml:"cluster"`
	KeypairPath   string `yaml:"keypair_path"`
	RPCURL        string `yaml:"rpc_url"`
	ProgramID     string `yaml:"program_id,omitempty"`
	Commitment    string `yaml:"commitment,omitempty"`
	MarginfiGroup string `yaml:"marginfi_group,omitempty"`
}

type activeFile struct {
	Profile string `yaml:"profile"`
}

func OpenStore(dir, lockPath string) *Store {
	return &Store{dir: dir, lock: flock.New(lockPath)}
}

type storeLoader struct {
	store *Store
	name  string
}

func (l storeLoader) Load() (Profile, error) {
	if l.name != "" {
		return l.store.Get(l.name)
	}
	name, err := l.store.Active()
	if err != nil {
		return Profile{}, err
	}
	if name == "" {
		return Profile{}, ErrNoActiveProfile()
	}
	return l.store.Get(name)
}

// Loader returns a loader for the named profile, or for the active one
// when name is empty.
func (s *Store) Loader(name string) Loader {
	return storeLoader{store: s, name: strings.TrimSpace(name)}
}

func ErrNoActiveProfile() error {
	return clierr.New(clierr.CodeConfig, "no active profile; create one with `profile create` or select one with `profile set`")
}

// Active returns the active profile name, or "" when none is set.
func (s *Store) Active() (string, error) {
	buf, err := os.ReadFile(s.activePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", clierr.Wrap(clierr.CodeConfig, "read active profile", err)
	}
	var af activeFile
	if err := yaml.Unmarshal(buf, &af); err != nil {
		return "", clierr.Wrap(clierr.CodeConfig, "parse active profile", err)
	}
	return strings.TrimSpace(af.Profile), nil
}

func (s *Store) Get(name string) (Profile, error) {
	if !validName.MatchString(name) {
		return Profile{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid profile name %q", name))
	}
	buf, err := os.ReadFile(s.profilePath(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Profile{}, clierr.New(clierr.CodeConfig, fmt.Sprintf("profile %q not found", name))
		}
		return Profile{}, clierr.Wrap(clierr.CodeConfig, "read profile", err)
	}
	var fp fileProfile
	if err := yaml.Unmarshal(buf, &fp); err != nil {
		return Profile{}, clierr.Wrap(clierr.CodeConfig, fmt.Sprintf("parse profile %q", name), err)
	}
	// The stored name is the consent token, so it must be the file's name.
	if fp.Name != name {
		return Profile{}, clierr.New(clierr.CodeConfig, fmt.Sprintf("malformed profile %q: name field is %q", name, fp.Name))
	}
	p, err := fp.decode()
	if err != nil {
		return Profile{}, clierr.Wrap(clierr.CodeConfig, fmt.Sprintf("malformed profile %q", name), err)
	}
	return p, nil
}

// List returns all profiles sorted by name.
func (s *Store) List() ([]Profile, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, "profiles"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Profile{}, nil
		}
		return nil, clierr.Wrap(clierr.CodeConfig, "list profiles", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	out := make([]Profile, 0, len(names))
	for _, name := range names {
		p, err := s.Get(name)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Create persists a new profile. The first profile created becomes active.
func (s *Store) Create(p Profile) error {
	if !validName.MatchString(p.Name) {
		return clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid profile name %q", p.Name))
	}
	return s.withLock(func() error {
		if _, err := os.Stat(s.profilePath(p.Name)); err == nil {
			return clierr.New(clierr.CodeUsage, fmt.Sprintf("profile %q already exists; use `profile update`", p.Name))
		}
		if err := s.writeProfile(p); err != nil {
			return err
		}
		active, err := s.Active()
		if err != nil {
			return err
		}
		if active == "" {
			return s.writeActive(p.Name)
		}
		return nil
	})
}

func (s *Store) SetActive(name string) error {
	return s.withLock(func() error {
		if _, err := s.Get(name); err != nil {
			return err
		}
		return s.writeActive(name)
	})
}

func (s *Store) Update(name string, patch Patch) (Profile, error) {
	var updated Profile
	err := s.withLock(func() error {
		p, err := s.Get(name)
		if err != nil {
			return err
		}
		patch.apply(&p)
		if err := s.writeProfile(p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	return updated, err
}

// SetGroup records the marginfi group a profile operates on.
func (s *Store) SetGroup(name string, group solana.PublicKey) error {
	_, err := s.Update(name, Patch{MarginfiGroup: &group})
	return err
}

func (p Patch) apply(dst *Profile) {
	if p.Cluster != nil {
		dst.Cluster = *p.Cluster
	}
	if p.KeypairPath != nil {
		dst.KeypairPath = *p.KeypairPath
	}
	if p.RPCURL != nil {
		dst.RPCURL = *p.RPCURL
	}
	if p.ProgramID != nil {
		v := *p.ProgramID
		dst.ProgramID = &v
	}
	if p.Commitment != nil {
		v := *p.Commitment
		dst.Commitment = &v
	}
	if p.MarginfiGroup != nil {
		v := *p.MarginfiGroup
		dst.MarginfiGroup = &v
	}
}

func (s *Store) withLock(fn func() error) error {
	if err := os.MkdirAll(filepath.Join(s.dir, "profiles"), 0o755); err != nil {
		return clierr.Wrap(clierr.CodeInternal, "create profile directory", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.lock.Path()), 0o755); err != nil {
		return clierr.Wrap(clierr.CodeInternal, "create profile lock directory", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	locked, err := s.lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return clierr.Wrap(clierr.CodeInternal, "lock profile store", err)
	}
	if !locked {
		return clierr.New(clierr.CodeInternal, "lock profile store: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()
	return fn()
}

func (s *Store) writeProfile(p Profile) error {
	buf, err := yaml.Marshal(encodeProfile(p))
	if err != nil {
		return clierr.Wrap(clierr.CodeInternal, "encode profile", err)
	}
	return writeFileAtomic(s.profilePath(p.Name), buf, 0o600)
}

func (s *Store) writeActive(name string) error {
	buf, err := yaml.Marshal(activeFile{Profile: name})
	if err != nil {
		return clierr.Wrap(clierr.CodeInternal, "encode active profile", err)
	}
	return writeFileAtomic(s.activePath(), buf, 0o600)
}

func (s *Store) profilePath(name string) string {
	return filepath.Join(s.dir, "profiles", name+".yaml")
}

func (s *Store) activePath() string {
	return filepath.Join(s.dir, "active.yaml")
}

func writeFileAtomic(path string, buf []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf, perm); err != nil {
		return clierr.Wrap(clierr.CodeInternal, "write "+filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return clierr.Wrap(clierr.CodeInternal, "replace "+filepath.Base(path), err)
	}
	return nil
}

func encodeProfile(p Profile) fileProfile {
	return fileProfile{
		Name:          p.Name,
		Cluster:       string(p.Cluster),
		KeypairPath:   p.KeypairPath,
		RPCURL:        p.RPCURL,
		ProgramID:     optionalKey(p.ProgramID),
		Commitment:    optionalCommitment(p.Commitment),
		MarginfiGroup: optionalKey(p.MarginfiGroup),
	}
}

func (fp fileProfile) decode() (Profile, error) {
	p := Profile{
		Name:        fp.Name,
		KeypairPath: fp.KeypairPath,
		RPCURL:      fp.RPCURL,
	}
	if fp.Cluster != "" {
		cluster, err := config.ParseCluster(fp.Cluster)
		if err != nil {
			return Profile{}, err
		}
		p.Cluster = cluster
	}
	if fp.ProgramID != "" {
		pk, err := config.ParsePubkey(fp.ProgramID)
		if err != nil {
			return Profile{}, fmt.Errorf("program_id: %w", err)
		}
		p.ProgramID = &pk
	}
	if fp.Commitment != "" {
		c, err := config.ParseCommitment(fp.Commitment)
		if err != nil {
			return Profile{}, err
		}
		p.Commitment = &c
	}
	if fp.MarginfiGroup != "" {
		pk, err := config.ParsePubkey(fp.MarginfiGroup)
		if err != nil {
			return Profile{}, fmt.Errorf("marginfi_group: %w", err)
		}
		p.MarginfiGroup = &pk
	}
	return p, nil
}
