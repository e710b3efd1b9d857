package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phuslu/log"
	"github.com/ssargent/sysconf/pkg/clocksync"
	"github.com/ssargent/sysconf/pkg/codec"
	"github.com/ssargent/sysconf/pkg/config"
	"github.com/ssargent/sysconf/pkg/di"
	"github.com/ssargent/sysconf/pkg/logging"
	"github.com/ssargent/sysconf/pkg/storage"
	"github.com/ssargent/sysconf/pkg/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedTime struct {
	delta int64
}

func (f fixedTime) Delta(ctx context.Context) (int64, error) {
	return f.delta, nil
}

type fixedTimeFactory struct {
	delta int64
}

func (f fixedTimeFactory) CreateTimeSource(cfg config.TimeService, logger *log.Logger) clocksync.TimeSource {
	return fixedTime{delta: f.delta}
}

func testSpecs() []store.EntrySpec {
	return []store.EntrySpec{
		{Name: "IPL.CB", Class: codec.TypeLong, Value: []byte{0x00, 0x00, 0x10, 0x00}},
		{Name: "IPL.LNG", Class: codec.TypeByte, Value: []byte{0x01}},
		{Name: "IPL.NIK", Class: codec.TypeSmallArray, Value: []byte("wii")},
		{Name: "IPL.E60", Class: codec.TypeBool, Value: []byte{0x01}},
	}
}

func newTestApp(t *testing.T) *app {
	t.Helper()

	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.SysconfPath = filepath.Join(dir, "SYSCONF")
	cfg.Snapshots.Dir = filepath.Join(dir, "snapshots")
	cfg.Snapshots.Compression = "lz4"
	cfg.TimeService.RetryDelay = 0

	c := di.NewContainer()
	c.SetTimeSourceFactory(fixedTimeFactory{delta: 120})
	SetContainer(c)

	conf, err := store.Build(testSpecs())
	require.NoError(t, err)
	require.NoError(t, storage.NewFile(cfg.SysconfPath, nil).WriteExact(conf.Bytes()))

	return &app{
		cfg:        cfg,
		configPath: filepath.Join(dir, "config.yaml"),
		logger:     logging.Discard(),
	}
}

func readImage(t *testing.T, a *app) []byte {
	t.Helper()
	data, err := os.ReadFile(a.cfg.SysconfPath)
	require.NoError(t, err)
	return data
}

func listSnapshotIDs(t *testing.T, a *app) []storage.Snapshot {
	t.Helper()
	snaps, err := a.openSnapshots()
	require.NoError(t, err)
	defer snaps.Close()

	list, err := snaps.List()
	require.NoError(t, err)
	return list
}

func TestListEntries(t *testing.T) {
	a := newTestApp(t)

	t.Run("table", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, listEntries(a, &out, false, nil))

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 5)
		assert.Contains(t, lines[0], "NAME")
		assert.Contains(t, lines[1], "IPL.CB")
		assert.Contains(t, lines[1], "Long")
		assert.Contains(t, lines[1], "4096")
	})

	t.Run("json", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, listEntries(a, &out, true, nil))

		var rows []entryRow
		require.NoError(t, json.Unmarshal(out.Bytes(), &rows))
		require.Len(t, rows, 4)
		assert.Equal(t, "IPL.NIK", rows[2].Name)
		assert.Equal(t, "SmallArray", rows[2].Type)
		assert.Equal(t, 3, rows[2].Length)
		assert.Equal(t, "776969", rows[2].Value)
	})
}

func TestListEntries_Where(t *testing.T) {
	a := newTestApp(t)

	var out bytes.Buffer
	require.NoError(t, listEntries(a, &out, true, []string{"name^=IPL.", "length<=1"}))

	var rows []entryRow
	require.NoError(t, json.Unmarshal(out.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "IPL.LNG", rows[0].Name)
	assert.Equal(t, "IPL.E60", rows[1].Name)

	assert.Error(t, listEntries(a, &out, false, []string{"colour=red"}))
}

func TestGetEntry(t *testing.T) {
	a := newTestApp(t)

	var out bytes.Buffer
	require.NoError(t, getEntry(a, &out, "IPL.CB", false))
	assert.Equal(t, "4096\n", out.String())

	out.Reset()
	require.NoError(t, getEntry(a, &out, "IPL.CB", true))
	assert.Equal(t, "00001000\n", out.String())

	err := getEntry(a, &out, "IPL.XXX", false)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSetEntry(t *testing.T) {
	a := newTestApp(t)
	before := readImage(t, a)

	var out bytes.Buffer
	require.NoError(t, setEntry(a, &out, "IPL.LNG", "", "2"))
	assert.Equal(t, "IPL.LNG = 2\n", out.String())

	conf, err := store.FromBytes(readImage(t, a))
	require.NoError(t, err)
	lng, err := store.Value[uint8](conf, "IPL.LNG")
	require.NoError(t, err)
	assert.Equal(t, uint8(2), lng)

	snaps := listSnapshotIDs(t, a)
	require.Len(t, snaps, 1)
	assert.Equal(t, storage.Fingerprint(before), snaps[0].Fingerprint)
}

func TestSetEntry_StringKind(t *testing.T) {
	a := newTestApp(t)

	var out bytes.Buffer
	require.NoError(t, setEntry(a, &out, "IPL.NIK", "str", "wuu"))
	assert.Equal(t, "IPL.NIK = 777575\n", out.String())
}

func TestSetEntry_Mismatch(t *testing.T) {
	a := newTestApp(t)
	before := readImage(t, a)

	var out bytes.Buffer
	err := setEntry(a, &out, "IPL.NIK", "str", "wiiu")
	assert.ErrorIs(t, err, store.ErrTypeMismatch)

	err = setEntry(a, &out, "IPL.LNG", "u32", "1")
	assert.ErrorIs(t, err, store.ErrTypeMismatch)

	assert.Equal(t, before, readImage(t, a))
	assert.Empty(t, listSnapshotIDs(t, a))
}

func TestCheckSysconf(t *testing.T) {
	a := newTestApp(t)

	var out bytes.Buffer
	require.NoError(t, checkSysconf(a, &out))
	assert.Equal(t, "OK: 4 entries\n", out.String())

	img := readImage(t, a)
	// Claim far more entries than the table can hold
	img[4], img[5] = 0xFF, 0xFF
	require.NoError(t, os.WriteFile(a.cfg.SysconfPath, img, 0600))

	out.Reset()
	err := checkSysconf(a, &out)
	assert.ErrorIs(t, err, store.ErrCorrupt)
	assert.True(t, strings.HasPrefix(out.String(), "FAIL:"))
}

func TestNewSysconf(t *testing.T) {
	a := newTestApp(t)
	entries := []string{"IPL.CB=Long:0", "IPL.LNG=Byte:1", "IPL.NIK=SmallArray:776969"}

	var out bytes.Buffer
	err := newSysconf(a, &out, entries, false)
	assert.ErrorContains(t, err, "already exists")

	require.NoError(t, newSysconf(a, &out, entries, true))
	assert.Contains(t, out.String(), "3 entries")

	conf, err := store.FromBytes(readImage(t, a))
	require.NoError(t, err)
	require.NoError(t, conf.Validate())
	cb, err := conf.Uint32("IPL.CB")
	require.NoError(t, err)
	assert.Equal(t, uint32(0), cb)
}

func TestParseEntrySpec(t *testing.T) {
	spec, err := parseEntrySpec("IPL.PC=Short:0x1234")
	require.NoError(t, err)
	assert.Equal(t, store.EntrySpec{Name: "IPL.PC", Class: codec.TypeShort, Value: []byte{0x12, 0x34}}, spec)

	for _, bad := range []string{"IPL.PC", "=Short:1", "IPL.PC=Short", "IPL.PC=Float:1", "IPL.PC=Short:99999"} {
		_, err := parseEntrySpec(bad)
		assert.Error(t, err, bad)
	}
}

func TestRunSync(t *testing.T) {
	a := newTestApp(t)

	t.Run("dry run", func(t *testing.T) {
		before := readImage(t, a)

		var out bytes.Buffer
		require.NoError(t, runSync(context.Background(), a, &out, true))
		assert.Contains(t, out.String(), "4096 -> 4216")
		assert.Contains(t, out.String(), "dry run")
		assert.Equal(t, before, readImage(t, a))
	})

	t.Run("saves", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, runSync(context.Background(), a, &out, false))
		assert.Contains(t, out.String(), "saved")

		conf, err := store.FromBytes(readImage(t, a))
		require.NoError(t, err)
		cb, err := conf.Uint32(clocksync.CounterBiasEntry)
		require.NoError(t, err)
		assert.Equal(t, uint32(4216), cb)
		assert.Len(t, listSnapshotIDs(t, a), 1)
	})
}

func TestRunSync_PrunesSnapshots(t *testing.T) {
	a := newTestApp(t)
	a.cfg.Snapshots.Keep = 1

	var out bytes.Buffer
	require.NoError(t, setEntry(a, &out, "IPL.LNG", "", "2"))
	require.Len(t, listSnapshotIDs(t, a), 1)

	beforeSync := readImage(t, a)
	require.NoError(t, runSync(context.Background(), a, &out, false))

	snaps := listSnapshotIDs(t, a)
	require.Len(t, snaps, 1)

	snapStore, err := a.openSnapshots()
	require.NoError(t, err)
	defer snapStore.Close()
	data, _, err := snapStore.Get(snaps[0].ID)
	require.NoError(t, err)
	assert.Equal(t, beforeSync, data)
}

func TestSnapshots_RestoreAndPrune(t *testing.T) {
	a := newTestApp(t)
	original := readImage(t, a)

	var out bytes.Buffer
	require.NoError(t, setEntry(a, &out, "IPL.LNG", "", "5"))
	require.NoError(t, setEntry(a, &out, "IPL.LNG", "", "6"))

	snaps := listSnapshotIDs(t, a)
	require.Len(t, snaps, 2)

	out.Reset()
	require.NoError(t, listSnapshots(a, &out))
	assert.Contains(t, out.String(), snaps[0].ID.String())
	assert.Contains(t, out.String(), "lz4")

	out.Reset()
	require.NoError(t, restoreSnapshot(a, &out, snaps[0].ID.String()))
	assert.Equal(t, original, readImage(t, a))
	assert.Len(t, listSnapshotIDs(t, a), 3)

	out.Reset()
	require.NoError(t, pruneSnapshots(a, &out, 1))
	assert.Contains(t, out.String(), "Removed 2")
	assert.Len(t, listSnapshotIDs(t, a), 1)

	assert.Error(t, restoreSnapshot(a, &out, "bogus"))
	assert.ErrorIs(t, restoreSnapshot(a, &out, snaps[0].ID.String()), storage.ErrSnapshotNotFound)
}

func TestSnapshots_Disabled(t *testing.T) {
	a := newTestApp(t)
	a.cfg.Snapshots.Enabled = false

	var out bytes.Buffer
	assert.ErrorContains(t, listSnapshots(a, &out), "disabled")

	// Writes still work without a snapshot store
	require.NoError(t, setEntry(a, &out, "IPL.E60", "", "false"))
}

func TestInitConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	var out bytes.Buffer
	require.NoError(t, initConfig(&out, configPath, "/tmp/SYSCONF", false, true))
	assert.Contains(t, out.String(), "API key:")

	cfg, err := config.LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/SYSCONF", cfg.SysconfPath)

	out.Reset()
	require.NoError(t, initConfig(&out, configPath, "", false, false))
	assert.Contains(t, out.String(), "already exists")
}

func TestLoadApp(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	a, err := loadApp(configPath, "", "")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().SysconfPath, a.cfg.SysconfPath)

	cfg := config.DefaultConfig()
	cfg.Logging.Level = "warn"
	require.NoError(t, config.SaveConfig(cfg, configPath))

	a, err = loadApp(configPath, "/override/SYSCONF", "debug")
	require.NoError(t, err)
	assert.Equal(t, "/override/SYSCONF", a.cfg.SysconfPath)
	assert.Equal(t, "debug", a.cfg.Logging.Level)

	cfg.Snapshots.Compression = "rar"
	require.NoError(t, config.SaveConfig(cfg, configPath))
	_, err = loadApp(configPath, "", "")
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestRootCommand_Get(t *testing.T) {
	a := newTestApp(t)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--config", a.configPath, "-f", a.cfg.SysconfPath, "--log-level", "error", "get", "IPL.LNG"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "1\n", out.String())
}
