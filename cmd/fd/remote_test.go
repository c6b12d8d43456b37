package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// useRemotesFile points the remotes file at a fresh temp path.
func useRemotesFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "remotes.toml")
	t.Setenv("FORMS_REMOTES_FILE", path)
	return path
}

func mustLoadRemotes(t *testing.T) *remotesFile {
	t.Helper()
	f, err := loadRemotes()
	if err != nil {
		t.Fatalf("loadRemotes: %v", err)
	}
	return f
}

func TestRemotesSaveLoad(t *testing.T) {
	useRemotesFile(t)

	in := &remotesFile{
		Active: "prod",
		Remotes: map[string]Remote{
			"prod":  {URL: "https://forms.example.com", GRPCAddr: "forms.example.com:9090", Token: "tok_abc", NATSURL: "nats://prod:4222"},
			"local": {URL: "http://localhost:8080"},
		},
	}
	if err := in.save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	got := mustLoadRemotes(t)
	if got.Active != "prod" {
		t.Errorf("Active = %q, want prod", got.Active)
	}
	for name, want := range in.Remotes {
		if got.Remotes[name] != want {
			t.Errorf("%s = %+v, want %+v", name, got.Remotes[name], want)
		}
	}
	if names := strings.Join(got.names(), ","); names != "local,prod" {
		t.Errorf("names() = %s, want local,prod", names)
	}
}

func TestLoadRemotes_NoFile(t *testing.T) {
	useRemotesFile(t)

	f := mustLoadRemotes(t)
	if f.Active != "" || len(f.Remotes) != 0 || f.Remotes == nil {
		t.Errorf("expected empty non-nil set, got %+v", f)
	}
}

func TestLoadRemotes_Malformed(t *testing.T) {
	path := useRemotesFile(t)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("active = [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadRemotes(); err == nil || !strings.Contains(err.Error(), path) {
		t.Fatalf("err = %v, want one naming %s", err, path)
	}
}

func TestRemotesSave_Permissions(t *testing.T) {
	path := useRemotesFile(t)

	if err := (&remotesFile{Remotes: map[string]Remote{}}).save(); err != nil {
		t.Fatalf("save: %v", err)
	}
	for p, want := range map[string]os.FileMode{path: 0o600, filepath.Dir(path): 0o700} {
		info, err := os.Stat(p)
		if err != nil {
			t.Fatalf("stat %s: %v", p, err)
		}
		if got := info.Mode().Perm(); got != want {
			t.Errorf("%s permissions = %04o, want %04o", p, got, want)
		}
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected only remotes.toml in state dir, got %d entries", len(entries))
	}
}

func TestRemotesPath_Default(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("FORMS_REMOTES_FILE", "")

	path, err := remotesPath()
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(home, ".local", "state", "forms", "remotes.toml"); path != want {
		t.Errorf("remotesPath() = %s, want %s", path, want)
	}
}

func TestRemoteValidate(t *testing.T) {
	tests := []struct {
		r       Remote
		wantErr bool
	}{
		{Remote{URL: "http://localhost:8080"}, false},
		{Remote{URL: "https://forms.example.com", NATSURL: "nats://nats:4222"}, false},
		{Remote{URL: "localhost:8080"}, true},
		{Remote{URL: "ftp://host"}, true},
		{Remote{URL: "http://"}, true},
		{Remote{URL: "http://localhost", NATSURL: "http://nats:4222"}, true},
	}
	for _, tt := range tests {
		if err := tt.r.validate(); (err != nil) != tt.wantErr {
			t.Errorf("validate(%+v) err = %v, wantErr %v", tt.r, err, tt.wantErr)
		}
	}
}

func TestRemoteLifecycle(t *testing.T) {
	useRemotesFile(t)

	out, err := run(t, remoteAddCmd, []string{"local", "http://localhost:8080/"}, map[string]string{"grpc": "localhost:9090"})
	if err != nil {
		t.Fatal(err)
	}
	requireContains(t, out, `remote "local" added (http://localhost:8080)`)

	// The first remote becomes active on its own.
	f := mustLoadRemotes(t)
	if f.Active != "local" || f.Remotes["local"].GRPCAddr != "localhost:9090" {
		t.Fatalf("after first add: %+v", f)
	}

	out, err = run(t, remoteAddCmd, []string{"local", "http://localhost:8081"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	requireContains(t, out, "updated")

	if _, err := run(t, remoteAddCmd, []string{"prod", "https://forms.example.com"}, nil); err != nil {
		t.Fatal(err)
	}
	if f := mustLoadRemotes(t); f.Active != "local" {
		t.Fatalf("Active = %q, want local to stay active", f.Active)
	}

	if _, err := run(t, remoteUseCmd, []string{"prod"}, nil); err != nil {
		t.Fatal(err)
	}
	out, err = run(t, remoteListCmd, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	requireContains(t, out, "* prod")
	requireContains(t, out, "  local")

	if _, err := run(t, remoteRenameCmd, []string{"prod", "production"}, nil); err != nil {
		t.Fatal(err)
	}
	out, err = run(t, remoteShowCmd, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	requireContains(t, out, "production (active)")
	requireContains(t, out, "https://forms.example.com")

	if _, err := run(t, remoteRemoveCmd, []string{"production"}, nil); err != nil {
		t.Fatal(err)
	}
	f = mustLoadRemotes(t)
	if _, ok := f.Remotes["production"]; ok || f.Active != "" {
		t.Fatalf("after remove: %+v", f)
	}
}

func TestRemoteAdd_Use(t *testing.T) {
	useRemotesFile(t)

	if _, err := run(t, remoteAddCmd, []string{"a", "http://a:8080"}, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, remoteAddCmd, []string{"b", "http://b:8080"}, map[string]string{"use": "true"}); err != nil {
		t.Fatal(err)
	}
	if f := mustLoadRemotes(t); f.Active != "b" {
		t.Fatalf("Active = %q, want b", f.Active)
	}
}

func TestRemoteTokenMasking(t *testing.T) {
	useRemotesFile(t)

	if _, err := run(t, remoteAddCmd, []string{"prod", "https://forms.example.com"}, map[string]string{"token": "tok_verylongsecret"}); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, remoteListCmd, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "tok_verylongsecret") {
		t.Error("full token must not appear in list output")
	}
	requireContains(t, out, "tok_very...")

	out, err = run(t, remoteShowCmd, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "tok_verylongsecret") {
		t.Error("full token must not appear in show output")
	}
	requireContains(t, out, "tok_very**********")
}

func TestRemoteErrorCases(t *testing.T) {
	seed := func(t *testing.T) {
		if _, err := run(t, remoteAddCmd, []string{"a", "http://a:8080"}, nil); err != nil {
			t.Fatal(err)
		}
		if _, err := run(t, remoteAddCmd, []string{"b", "http://b:8080"}, nil); err != nil {
			t.Fatal(err)
		}
	}
	tests := []struct {
		name string
		seed bool
		cmd  func(t *testing.T) error
	}{
		{"add bad url", false, func(t *testing.T) error { _, err := run(t, remoteAddCmd, []string{"x", "not a url"}, nil); return err }},
		{"use unknown", false, func(t *testing.T) error { _, err := run(t, remoteUseCmd, []string{"ghost"}, nil); return err }},
		{"remove unknown", false, func(t *testing.T) error { _, err := run(t, remoteRemoveCmd, []string{"ghost"}, nil); return err }},
		{"show no active", false, func(t *testing.T) error { _, err := run(t, remoteShowCmd, nil, nil); return err }},
		{"show unknown", true, func(t *testing.T) error { _, err := run(t, remoteShowCmd, []string{"ghost"}, nil); return err }},
		{"rename onto existing", true, func(t *testing.T) error { _, err := run(t, remoteRenameCmd, []string{"a", "b"}, nil); return err }},
		{"rename unknown", true, func(t *testing.T) error { _, err := run(t, remoteRenameCmd, []string{"ghost", "c"}, nil); return err }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			useRemotesFile(t)
			if tc.seed {
				seed(t)
			}
			if err := tc.cmd(t); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestMaskToken(t *testing.T) {
	tests := []struct {
		tok, suffix, want string
	}{
		{"", "...", ""},
		{"short", "...", "short"},
		{"exactly8", "...", "exactly8"},
		{"tok_verylong", "...", "tok_very..."},
		{"tok_verylong", "****", "tok_very****"},
	}
	for _, tc := range tests {
		if got := maskToken(tc.tok, tc.suffix); got != tc.want {
			t.Errorf("maskToken(%q, %q) = %q, want %q", tc.tok, tc.suffix, got, tc.want)
		}
	}
}
