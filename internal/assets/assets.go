// Package assets loads the obfuscated question-bank files bundled with the
// app and hands the decrypted dump text to the embedded store.
package assets

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"qbank/internal/qcrypt"
)

const (
	mainDumpFile = "initial_db.enc"
	poolsSubdir  = "qbanks"
)

// Source provides decrypted seed material. Freshness is controlled entirely
// by the version manager's cache-clear trigger, not by the assets themselves.
type Source interface {
	// MainDump returns the decrypted main relational dump.
	MainDump(ctx context.Context) ([]byte, error)
	// PoolDump returns the decrypted payload of a secondary content pool,
	// one file per (exam-block, institution) pair.
	PoolDump(ctx context.Context, name string) ([]byte, error)
}

// Dir reads assets from a directory on disk.
type Dir struct {
	Path string
	Key  string
}

func (d Dir) MainDump(_ context.Context) ([]byte, error) {
	raw, err := os.ReadFile(filepath.Join(d.Path, mainDumpFile))
	if err != nil {
		return nil, errors.Wrap(err, "read seed asset")
	}
	return qcrypt.Decrypt(raw, d.Key), nil
}

func (d Dir) PoolDump(_ context.Context, name string) ([]byte, error) {
	raw, err := os.ReadFile(filepath.Join(d.Path, poolsSubdir, name+".enc"))
	if err != nil {
		return nil, errors.Wrap(err, "read pool asset")
	}
	return qcrypt.Decrypt(raw, d.Key), nil
}
