package credential

import (
	"context"
	"os"
	"strings"
	"sync"

	"missioncontrol/internal/errors"
)

// fakeRunner answers commands keyed by "name arg1 arg2 ...".
type fakeRunner struct {
	mu      sync.Mutex
	results map[string]CommandResult
	calls   []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{results: map[string]CommandResult{}}
}

func (f *fakeRunner) on(cmd string, res CommandResult) *fakeRunner {
	f.results[cmd] = res
	return f
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (CommandResult, error) {
	key := strings.Join(append([]string{name}, args...), " ")
	f.mu.Lock()
	f.calls = append(f.calls, key)
	f.mu.Unlock()
	res, ok := f.results[key]
	if !ok {
		return CommandResult{ExitCode: 127}, errors.Wrapf(errors.ErrCommandFailed, "%s: not configured", name)
	}
	if res.ExitCode != 0 {
		return res, errors.Wrapf(errors.ErrCommandFailed, "%s: %s", name, res.Stderr)
	}
	return res, nil
}

// fakeSecrets is an in-memory SecretBackend.
type fakeSecrets struct {
	whoami    string
	whoamiErr error
	fields    map[string]string // "vault/item/field" -> value
	items     map[string]string // "vault/item" -> json
	reads     []string
}

func (f *fakeSecrets) Whoami(context.Context) (string, error) {
	return f.whoami, f.whoamiErr
}

func (f *fakeSecrets) ReadField(_ context.Context, vault, item, field string) (string, error) {
	key := vault + "/" + item + "/" + field
	f.reads = append(f.reads, field)
	v, ok := f.fields[key]
	if !ok {
		return "", errors.Wrap(errors.ErrCommandFailed, "field not found")
	}
	return v, nil
}

func (f *fakeSecrets) ItemJSON(_ context.Context, vault, item string) ([]byte, error) {
	v, ok := f.items[vault+"/"+item]
	if !ok {
		return nil, errors.Wrap(errors.ErrCommandFailed, "item not found")
	}
	return []byte(v), nil
}

// fakeFiles maps paths to contents; anything else does not exist.
type fakeFiles map[string]string

func (f fakeFiles) ReadFile(path string) ([]byte, error) {
	v, ok := f[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return []byte(v), nil
}
