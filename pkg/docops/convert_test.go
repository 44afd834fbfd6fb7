package docops

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner mimics LibreOffice by writing <stem>.pdf into --outdir
type fakeRunner struct {
	available bool
	produce   bool
	err       error
	calls     []Command
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	if !f.available {
		return "", errors.New("not found")
	}
	return "/usr/bin/" + name, nil
}

func (f *fakeRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	f.calls = append(f.calls, cmd)
	if f.err != nil {
		return Result{ExitCode: 1, Stderr: []byte("boom")}, f.err
	}
	if f.produce {
		var outDir string
		for i, arg := range cmd.Args {
			if arg == "--outdir" && i+1 < len(cmd.Args) {
				outDir = cmd.Args[i+1]
			}
		}
		in := cmd.Args[len(cmd.Args)-1]
		stem := strings.TrimSuffix(filepath.Base(in), filepath.Ext(in))
		if err := os.WriteFile(filepath.Join(outDir, stem+".pdf"), []byte("%PDF-1.7\n"), 0600); err != nil {
			return Result{}, err
		}
	}
	return Result{}, nil
}

func writeDeck(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "deck.pptx")
	require.NoError(t, os.WriteFile(path, []byte("PK\x03\x04 fake deck"), 0600))
	return path
}

func assertNoWorkDirs(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, e.IsDir(), "leftover directory %s", e.Name())
	}
}

func TestConvertPresentation(t *testing.T) {
	ctx := context.Background()

	t.Run("success moves output", func(t *testing.T) {
		dir := t.TempDir()
		runner := &fakeRunner{available: true, produce: true}
		codec := newTestCodec(t, WithRunner(runner))

		out := filepath.Join(dir, "slides.pdf")
		require.NoError(t, codec.ConvertPresentation(ctx, writeDeck(t, dir), out))

		assert.FileExists(t, out)
		require.Len(t, runner.calls, 1)
		assert.Equal(t, "/usr/bin/soffice", runner.calls[0].Name)
		assert.Contains(t, runner.calls[0].Args, "--headless")
		assert.Equal(t, 5*time.Minute, runner.calls[0].Timeout)
		assertNoWorkDirs(t, dir)
	})

	t.Run("converter unavailable", func(t *testing.T) {
		dir := t.TempDir()
		codec := newTestCodec(t, WithRunner(&fakeRunner{available: false}))

		err := codec.ConvertPresentation(ctx, writeDeck(t, dir), filepath.Join(dir, "slides.pdf"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrConversion))
		assert.True(t, errors.Is(err, ErrConverterUnavailable))
	})

	t.Run("no output produced", func(t *testing.T) {
		dir := t.TempDir()
		codec := newTestCodec(t, WithRunner(&fakeRunner{available: true}))

		out := filepath.Join(dir, "slides.pdf")
		err := codec.ConvertPresentation(ctx, writeDeck(t, dir), out)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrConversion))
		assert.True(t, errors.Is(err, ErrNoOutput))
		assert.NoFileExists(t, out)
		assertNoWorkDirs(t, dir)
	})

	t.Run("converter fails", func(t *testing.T) {
		dir := t.TempDir()
		codec := newTestCodec(t, WithRunner(&fakeRunner{available: true, err: errors.New("exit 77")}))

		err := codec.ConvertPresentation(ctx, writeDeck(t, dir), filepath.Join(dir, "slides.pdf"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrConversion))
		assertNoWorkDirs(t, dir)
	})

	t.Run("missing source", func(t *testing.T) {
		dir := t.TempDir()
		codec := newTestCodec(t, WithRunner(&fakeRunner{available: true, produce: true}))

		err := codec.ConvertPresentation(ctx, filepath.Join(dir, "none.pptx"), filepath.Join(dir, "slides.pdf"))
		assert.True(t, errors.Is(err, ErrMissingSource))
	})
}

func TestExecRunner(t *testing.T) {
	sh, err := ExecRunner{}.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	t.Run("captures output", func(t *testing.T) {
		res, err := ExecRunner{}.Run(context.Background(), Command{Name: sh, Args: []string{"-c", "echo hi"}})
		require.NoError(t, err)
		assert.Equal(t, "hi\n", string(res.Stdout))
		assert.Equal(t, 0, res.ExitCode)
	})

	t.Run("exit code", func(t *testing.T) {
		res, err := ExecRunner{}.Run(context.Background(), Command{Name: sh, Args: []string{"-c", "exit 3"}})
		assert.Error(t, err)
		assert.Equal(t, 3, res.ExitCode)
	})

	t.Run("timeout", func(t *testing.T) {
		_, err := ExecRunner{}.Run(context.Background(), Command{
			Name:    sh,
			Args:    []string{"-c", "sleep 5"},
			Timeout: 50 * time.Millisecond,
		})
		assert.True(t, errors.Is(err, ErrExecutionTimeout))
	})
}
