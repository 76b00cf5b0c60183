package cuckoodex_test

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/hupe1980/cuckoodex"
	"github.com/hupe1980/cuckoodex/blobstore"
)

func key(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// Example_create demonstrates creating an index over one column.
func Example_create() {
	dir, _ := os.MkdirTemp("", "cuckoodex")
	defer os.RemoveAll(dir)

	idx, err := cuckoodex.Create(
		filepath.Join(dir, "users_email.ck"),
		[]cuckoodex.Column{{Name: "email"}},
		cuckoodex.WithBitsPerTag(16), // lower false positive rate
	)
	if err != nil {
		log.Fatal(err)
	}
	defer idx.Close()

	fmt.Println("index created successfully")
	// Output: index created successfully
}

// Example_insertScan demonstrates inserting rows and scanning for
// candidates. The bitmap is a superset of the true matches; revalidate
// each row against your row store.
func Example_insertScan() {
	dir, _ := os.MkdirTemp("", "cuckoodex")
	defer os.RemoveAll(dir)

	ctx := context.Background()
	idx, _ := cuckoodex.Create(filepath.Join(dir, "idx.ck"), []cuckoodex.Column{{Name: "id"}})
	defer idx.Close()

	for row := uint64(1); row <= 3; row++ {
		if err := idx.Insert(ctx, cuckoodex.RowID(row), []cuckoodex.Value{key(row)}); err != nil {
			log.Fatal(err)
		}
	}

	sc := idx.NewScanner()
	sc.Rescan([]cuckoodex.Value{key(2)})
	bm, _, err := sc.Bitmap(ctx)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("row 2 is a candidate: %v\n", bm.Contains(2))
	// Output: row 2 is a candidate: true
}

// Example_build demonstrates bulk loading from a row source.
func Example_build() {
	dir, _ := os.MkdirTemp("", "cuckoodex")
	defer os.RemoveAll(dir)

	ctx := context.Background()
	idx, _ := cuckoodex.Create(filepath.Join(dir, "idx.ck"), []cuckoodex.Column{{Name: "id"}})
	defer idx.Close()

	rows := make([]cuckoodex.Row, 1000)
	for k := range rows {
		rows[k] = cuckoodex.Row{
			ID:     cuckoodex.RowID(k + 1),
			Values: []cuckoodex.Value{key(uint64(k + 1))},
		}
	}

	res, err := idx.Build(ctx, cuckoodex.NewSliceSource(rows))
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("indexed %d rows\n", res.Rows)
	// Output: indexed 1000 rows
}

// Example_vacuum demonstrates removing tuples for dead rows.
func Example_vacuum() {
	dir, _ := os.MkdirTemp("", "cuckoodex")
	defer os.RemoveAll(dir)

	ctx := context.Background()
	idx, _ := cuckoodex.Create(filepath.Join(dir, "idx.ck"), []cuckoodex.Column{{Name: "id"}})
	defer idx.Close()

	for row := uint64(1); row <= 10; row++ {
		idx.Insert(ctx, cuckoodex.RowID(row), []cuckoodex.Value{key(row)})
	}

	stats, err := idx.BulkDelete(ctx, func(row cuckoodex.RowID) bool {
		return row%2 == 0 // even rows are dead
	})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("removed %d tuples\n", stats.TuplesRemoved)
	// Output: removed 5 tuples
}

// Example_archive demonstrates snapshotting an index into a blob store
// and restoring it elsewhere.
func Example_archive() {
	dir, _ := os.MkdirTemp("", "cuckoodex")
	defer os.RemoveAll(dir)

	ctx := context.Background()
	idx, _ := cuckoodex.Create(filepath.Join(dir, "idx.ck"), []cuckoodex.Column{{Name: "id"}})
	idx.Insert(ctx, 1, []cuckoodex.Value{key(1)})

	store := blobstore.NewMemoryStore()
	if err := idx.Archive(ctx, store, "snapshots/idx.ckar"); err != nil {
		log.Fatal(err)
	}
	idx.Close()

	restored := filepath.Join(dir, "restored.ck")
	if err := cuckoodex.Restore(ctx, store, "snapshots/idx.ckar", restored); err != nil {
		log.Fatal(err)
	}

	idx2, err := cuckoodex.Open(restored, []cuckoodex.Column{{Name: "id"}})
	if err != nil {
		log.Fatal(err)
	}
	defer idx2.Close()

	fmt.Println("restored successfully")
	// Output: restored successfully
}
