// Package main provides dojamd, the headless dojam host daemon: it owns
// the journal and snapshot cache for one book directory and ticks the host
// loop until interrupted (spec.md §6's CLI).
package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	flag "github.com/spf13/pflag"

	internalfs "github.com/dojam/dojam/internal/fs"
	"github.com/dojam/dojam/internal/host"
	"github.com/dojam/dojam/internal/journal"
	"github.com/dojam/dojam/internal/mim"
	"github.com/dojam/dojam/internal/model"
	"github.com/dojam/dojam/internal/snapcache"
	"github.com/dojam/dojam/pkg/fs"
)

var errConnectNotSupported = errors.New("dojamd: -connect is not yet supported; run with -dir for a local host")

// tickInterval is how often the headless host drains its queues when it
// has no work pending, mirroring host_tick()'s "driven by an outer polling
// loop" contract from spec.md §5.
const tickInterval = 10 * time.Millisecond

// pushThresholdBytes is how far the journal must grow since the last
// snapshot-cache push before another push is triggered (spec.md §4.5 step 5).
const pushThresholdBytes = 1 << 20

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr *os.File) int {
	var helpBuf bytes.Buffer

	flagSet := flag.NewFlagSet("dojamd", flag.ContinueOnError)
	flagSet.SetOutput(&helpBuf)
	flagSet.Usage = func() {
		w := flagSet.Output()
		fmt.Fprintf(w, "Usage: dojamd -dir PATH\n\n")
		fmt.Fprintf(w, "Run a headless dojam host against the journal in PATH.\n\n")
		fmt.Fprintf(w, "Options:\n")
		flagSet.PrintDefaults()
	}

	dir := flagSet.String("dir", "", "journal directory")
	connect := flagSet.String("connect", "", "connect to a remote host instead of hosting locally (not yet implemented)")

	if err := flagSet.Parse(args); err != nil {
		fmt.Fprintf(stderr, "%v\n\n%s", err, helpBuf.String())
		return 1
	}

	if *connect != "" {
		fmt.Fprintln(stderr, errConnectNotSupported)
		return 1
	}

	if *dir == "" {
		fmt.Fprintln(stderr, "dojamd: -dir is required")
		flagSet.Usage()
		fmt.Fprint(stderr, helpBuf.String())

		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	if err := serve(*dir, sigCh, stdout); err != nil {
		fmt.Fprintf(stderr, "dojamd: %v\n", err)
		return 1
	}

	return 0
}

func serve(dir string, sigCh <-chan os.Signal, stdout *os.File) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	lockFS := internalfs.NewReal()
	locker := internalfs.NewLocker(lockFS)

	lock, err := locker.TryLock(filepath.Join(dir, "dojamd.lock"))
	if err != nil {
		return fmt.Errorf("another dojamd is already running against %s: %w", dir, err)
	}
	defer func() { _ = lock.Close() }()

	fsys := fs.NewReal()

	jnl, err := openOrCreateJournal(fsys, dir)
	if err != nil {
		return err
	}
	defer func() { _ = jnl.Close() }()

	cache, err := openOrCreateCache(fsys, dir, jnl.Insignia())
	if err != nil {
		return err
	}
	defer func() { _ = cache.Close() }()

	present, err := bootstrapSnapshot(jnl, cache)
	if err != nil {
		return err
	}

	h := host.New(present, jnl, cache, pushThresholdBytes)

	runID, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate run id: %w", err)
	}

	fmt.Fprintf(stdout, "dojamd: serving %s (run %s, journal size %s)\n", dir, runID, humanize.Bytes(uint64(jnl.Size())))

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sigCh:
			fmt.Fprintln(stdout, "dojamd: shutting down")
			return nil
		case now := <-ticker.C:
			if _, err := h.Tick(now.UnixMicro()); err != nil {
				return fmt.Errorf("tick: %w", err)
			}
		}
	}
}

// openOrCreateJournal opens the journal at dir/journal, creating it if absent.
func openOrCreateJournal(fsys fs.FS, dir string) (*journal.Journal, error) {
	path := filepath.Join(dir, "journal")

	jnl, err := journal.Open(fsys, path, 20)
	if errors.Is(err, os.ErrNotExist) {
		jnl, err = journal.Create(fsys, path, 20)
	}

	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	return jnl, nil
}

// bootstrapSnapshot rebuilds the present snapshot on startup: restore from
// the snapshot cache when it has an entry (skipping most of the journal),
// then replay whatever the cache didn't cover (spec.md §8 property 2).
// An empty cache falls back to a full replay from offset 0.
func bootstrapSnapshot(jnl *journal.Journal, cache *snapcache.Cache) (*model.Snapshot, error) {
	present, journalOffset, err := cache.Restore()

	switch {
	case err == nil:
	case errors.Is(err, snapcache.ErrEmpty):
		present = model.New()
		journalOffset = 0
	default:
		return nil, fmt.Errorf("restore snapshot cache: %w", err)
	}

	entries, err := jnl.ReplayFrom(journalOffset)
	if err != nil {
		return nil, fmt.Errorf("replay journal: %w", err)
	}

	for _, e := range entries {
		env := mim.Envelope{ArtistID: e.ArtistID, SessionID: e.SessionID}
		if err := mim.Apply(present, env, e.Payload, e.TsMicro); err != nil {
			// A malformed entry already on disk is a corrupted journal, not
			// a live protocol violation - unlike host.commit, this is fatal.
			return nil, fmt.Errorf("replay journal: entry at artist=%d session=%d: %w", e.ArtistID, e.SessionID, err)
		}
	}

	return present, nil
}

// openOrCreateCache opens the snapshot cache beside the journal, or
// creates it tagged with the journal's own insignia so a cache can never
// be restored against the wrong journal.
func openOrCreateCache(fsys fs.FS, dir string, insignia uint64) (*snapcache.Cache, error) {
	dataPath := filepath.Join(dir, "snapshotcache.data")
	indexPath := filepath.Join(dir, "snapshotcache.index")

	cache, err := snapcache.Open(fsys, dataPath, indexPath, insignia)
	if errors.Is(err, os.ErrNotExist) {
		return snapcache.Create(fsys, dataPath, indexPath, insignia)
	}

	if err != nil {
		return nil, fmt.Errorf("open snapshot cache: %w", err)
	}

	return cache, nil
}
