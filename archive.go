package cuckoodex

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/hupe1980/cuckoodex/blobstore"
	"github.com/hupe1980/cuckoodex/codec"
	"github.com/hupe1980/cuckoodex/internal/page"
)

// archiveMagic starts every snapshot archive, followed by a one-byte
// codec name length and the codec name.
var archiveMagic = []byte("CKARCHV1")

// ArchiveOptions configures Archive and Restore.
type ArchiveOptions struct {
	// Codec compresses the page stream. Defaults to codec.Default.
	// Restore ignores this and uses the codec named in the archive.
	Codec codec.Codec
}

// Archive streams a snapshot of the index into the blob store under
// name. Pages are copied under shared locks; run without concurrent
// writers for a transactionally consistent snapshot.
func (i *Index) Archive(ctx context.Context, store blobstore.BlobStore, name string, optFns ...func(*ArchiveOptions)) (err error) {
	start := time.Now()
	defer func() {
		i.opts.metricsCollector.RecordArchive(time.Since(start), err)
		i.logger.LogArchive(ctx, "archive", name, time.Since(start), err)
	}()

	if err = i.checkOpen(); err != nil {
		return err
	}

	opts := ArchiveOptions{Codec: codec.Default}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(i.writeArchive(ctx, pw, opts.Codec))
	}()

	if perr := store.Put(ctx, name, pr); perr != nil {
		_ = pr.CloseWithError(perr)
		err = perr
		return err
	}

	return nil
}

func (i *Index) writeArchive(ctx context.Context, w io.Writer, c codec.Codec) error {
	if _, err := w.Write(archiveMagic); err != nil {
		return err
	}
	nameBytes := []byte(c.Name())
	if len(nameBytes) > 255 {
		return fmt.Errorf("codec name too long: %s", c.Name())
	}
	if _, err := w.Write([]byte{byte(len(nameBytes))}); err != nil {
		return err
	}
	if _, err := w.Write(nameBytes); err != nil {
		return err
	}

	cw, err := c.NewWriter(w)
	if err != nil {
		return err
	}

	buf := make([]byte, page.Size)
	npages := i.store.NumPages()
	for blkno := uint32(0); blkno < npages; blkno++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		i.store.RLock(blkno)
		img, err := i.store.Read(blkno)
		if err != nil {
			i.store.RUnlock(blkno)
			return translateError(err)
		}
		copy(buf, img)
		i.store.RUnlock(blkno)

		if _, err := cw.Write(buf); err != nil {
			return err
		}
	}

	return cw.Close()
}

// Restore materializes an archived snapshot as a fresh index file at
// path. The target must not exist. The codec is taken from the archive
// header; the restored file is validated before it is moved into
// place.
func Restore(ctx context.Context, store blobstore.BlobStore, name, path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("restore target %s already exists", path)
	} else if !os.IsNotExist(err) {
		return err
	}

	blob, err := store.Open(ctx, name)
	if err != nil {
		return err
	}
	defer blob.Close()

	br := bufio.NewReader(blob)

	header := make([]byte, len(archiveMagic))
	if _, err := io.ReadFull(br, header); err != nil {
		return fmt.Errorf("read archive header: %w", err)
	}
	if string(header) != string(archiveMagic) {
		return fmt.Errorf("%w: bad archive header", ErrBadMagic)
	}
	nameLen, err := br.ReadByte()
	if err != nil {
		return fmt.Errorf("read archive header: %w", err)
	}
	codecName := make([]byte, nameLen)
	if _, err := io.ReadFull(br, codecName); err != nil {
		return fmt.Errorf("read archive header: %w", err)
	}
	c, ok := codec.ByName(string(codecName))
	if !ok {
		return fmt.Errorf("unknown archive codec %q", codecName)
	}

	cr, err := c.NewReader(br)
	if err != nil {
		return err
	}
	defer cr.Close()

	tmp, err := os.CreateTemp(filepath.Dir(path), ".restore-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	size, err := io.Copy(tmp, cr)
	if err != nil {
		cleanup()
		return err
	}
	if size < page.Size || size%page.Size != 0 {
		cleanup()
		return fmt.Errorf("%w: restored size %d not a page multiple", ErrCorrupted, size)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}

	// The first restored page must be a valid metapage.
	meta := make([]byte, page.Size)
	if _, err := tmp.ReadAt(meta, 0); err != nil {
		cleanup()
		return err
	}
	if _, err := page.NewMetaView(meta); err != nil {
		cleanup()
		return fmt.Errorf("%w: %w", ErrBadMagic, err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, path)
}
