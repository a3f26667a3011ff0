package covertree

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	_ "modernc.org/sqlite"
)

// LoadSQLitePointCloud reads a reference collection from a SQLite table.
// The table must expose an `embedding` BLOB column holding little-endian
// IEEE 754 float32 values and may expose an integer `label` column; rows are
// read in rowid order so point indices are stable across loads.
//
// The table name is interpolated into the query; callers must not pass
// untrusted input.
func LoadSQLitePointCloud(ctx context.Context, path, table string, dim int) (*DensePointCloud, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	defer db.Close()

	query := `SELECT embedding, COALESCE(label, 0) FROM ` + table + ` ORDER BY rowid`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	var data []float32
	var labels []uint64
	for rows.Next() {
		var blob []byte
		var label uint64
		if err := rows.Scan(&blob, &label); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		vec, err := DecodeVector(blob)
		if err != nil {
			return nil, err
		}
		if len(vec) != dim {
			return nil, fmt.Errorf("%w: row has %d dimensions, want %d", ErrDimensionMismatch, len(vec), dim)
		}
		data = append(data, vec...)
		labels = append(labels, label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	return NewDensePointCloud(data, dim, labels)
}

// EncodeVector encodes a float32 vector as a little-endian BLOB, the layout
// LoadSQLitePointCloud expects.
func EncodeVector(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// DecodeVector decodes a BLOB produced by EncodeVector.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: blob length %d is not a multiple of 4", ErrDimensionMismatch, len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}
