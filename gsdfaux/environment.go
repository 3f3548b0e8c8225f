package gsdfaux

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/soypat/sdftrace/gltrace"
)

// watchSettle is how long a watched file must stay quiet before it is reloaded.
// Editors commonly emit several events per save.
const watchSettle = 50 * time.Millisecond

// DecodeEnvironment reads a TOML environment from r. Keys missing from the
// document keep their [gltrace.DefaultEnvironment] value. Unknown keys are an error.
func DecodeEnvironment(r io.Reader) (gltrace.Environment, error) {
	env := gltrace.DefaultEnvironment()
	md, err := toml.NewDecoder(r).Decode(&env)
	if err != nil {
		return env, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return env, fmt.Errorf("unknown environment keys: %s", strings.Join(keys, ", "))
	}
	return env, env.Validate()
}

// LoadEnvironment reads the TOML environment file at path. See [DecodeEnvironment].
func LoadEnvironment(path string) (gltrace.Environment, error) {
	fp, err := os.Open(path)
	if err != nil {
		return gltrace.Environment{}, err
	}
	defer fp.Close()
	env, err := DecodeEnvironment(fp)
	if err != nil {
		return env, fmt.Errorf("%s: %w", path, err)
	}
	return env, nil
}

// EncodeEnvironment writes env to w as TOML.
func EncodeEnvironment(w io.Writer, env gltrace.Environment) error {
	return toml.NewEncoder(w).Encode(env)
}

// WatchEnvironment calls fn with the freshly loaded environment every time the
// file at path is written, until ctx is done. Load errors are passed to fn and
// do not stop the watch. The containing directory is watched so that editors
// replacing the file on save are handled.
// WatchEnvironment blocks and returns ctx's error once ctx is done.
func WatchEnvironment(ctx context.Context, path string, fn func(gltrace.Environment, error)) error {
	if fn == nil {
		return errors.New("nil callback")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	err = watcher.Add(filepath.Dir(abs))
	if err != nil {
		return err
	}
	settle := time.NewTimer(watchSettle)
	settle.Stop()
	defer settle.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return errors.New("file watcher closed")
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				settle.Reset(watchSettle)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.New("file watcher closed")
			}
			fn(gltrace.Environment{}, fmt.Errorf("watching %s: %w", path, err))
		case <-settle.C:
			fn(LoadEnvironment(abs))
		}
	}
}
