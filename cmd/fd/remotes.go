package main

import (
	"fmt"
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/BurntSushi/toml"
)

// Remote is a named forms server profile.
type Remote struct {
	URL      string `toml:"url"`
	GRPCAddr string `toml:"grpc_addr,omitempty"`
	Token    string `toml:"token,omitempty"`
	NATSURL  string `toml:"nats_url,omitempty"`
}

func (r Remote) validate() error {
	u, err := url.Parse(r.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid server url %q: want http(s)://host[:port]", r.URL)
	}
	if r.NATSURL != "" {
		n, err := url.Parse(r.NATSURL)
		if err != nil || (n.Scheme != "nats" && n.Scheme != "tls") || n.Host == "" {
			return fmt.Errorf("invalid nats url %q: want nats://host[:port]", r.NATSURL)
		}
	}
	return nil
}

// remotesFile is the decoded remotes.toml.
type remotesFile struct {
	Active  string            `toml:"active"`
	Remotes map[string]Remote `toml:"remotes"`
}

// remotesPath is $FORMS_REMOTES_FILE, or ~/.local/state/forms/remotes.toml.
func remotesPath() (string, error) {
	if p := os.Getenv("FORMS_REMOTES_FILE"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "forms", "remotes.toml"), nil
}

// loadRemotes reads the remotes file. A missing file is an empty set.
func loadRemotes() (*remotesFile, error) {
	path, err := remotesPath()
	if err != nil {
		return nil, err
	}
	f := &remotesFile{}
	if _, err := toml.DecodeFile(path, f); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if f.Remotes == nil {
		f.Remotes = map[string]Remote{}
	}
	return f, nil
}

// save replaces the remotes file. The file holds tokens, so it is written
// 0600 inside a 0700 directory.
func (f *remotesFile) save() error {
	path, err := remotesPath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".remotes-*.toml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := toml.NewEncoder(tmp).Encode(f); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (f *remotesFile) lookup(name string) (Remote, error) {
	r, ok := f.Remotes[name]
	if !ok {
		return Remote{}, fmt.Errorf("remote %q not found", name)
	}
	return r, nil
}

func (f *remotesFile) names() []string {
	return slices.Sorted(maps.Keys(f.Remotes))
}

// updateRemotes loads the file, applies fn and saves the result unless fn
// fails.
func updateRemotes(fn func(*remotesFile) error) error {
	f, err := loadRemotes()
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		return err
	}
	return f.save()
}

// activeRemote is read once per process; a broken file means no remote.
var activeRemote = sync.OnceValue(func() Remote {
	f, err := loadRemotes()
	if err != nil || f.Active == "" {
		return Remote{}
	}
	return f.Remotes[f.Active]
})

func activeRemoteURL() string      { return activeRemote().URL }
func activeRemoteGRPCAddr() string { return activeRemote().GRPCAddr }
func activeRemoteToken() string    { return activeRemote().Token }
func activeRemoteNATSURL() string  { return activeRemote().NATSURL }
