package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/storagekit/webdav-go/internal/uploads"
)

// defaultChunkSize is the per-chunk transfer size for resumable uploads.
// Every chunk costs the backend a full read plus a full write of the
// object so far, so larger chunks mean fewer round trips.
const defaultChunkSize = 4 * 1024 * 1024

func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <local-path> <remote-path>",
		Short: "Upload a large file in resumable chunks",
		Long: `Upload a file in byte-offset-addressed chunks that survive
interruption. Progress is tracked in a local session ledger; rerun with
--resume to continue an interrupted upload from its last committed
offset. Sessions expire after 7 days ("uploads prune" removes them).`,
		Args: cobra.ExactArgs(2),
		RunE: runUpload,
	}

	cmd.Flags().Int64("chunk-size", defaultChunkSize, "chunk size in bytes")
	cmd.Flags().Bool("resume", false, "resume the newest session for this remote path")

	return cmd
}

func runUpload(cmd *cobra.Command, args []string) error {
	local, remote := args[0], args[1]
	logger := buildLogger()

	d, err := newDriver(logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	store, err := openLedger(ctx, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	f, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("opening %s: %w", local, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", local, err)
	}

	size := fi.Size()

	resume, _ := cmd.Flags().GetBool("resume")

	var sess *uploads.Session

	if resume {
		sess, err = store.ByPath(ctx, remote)
		if err != nil {
			return fmt.Errorf("no resumable session for %s: %w", remote, err)
		}

		if sess.Expired(time.Now()) {
			return fmt.Errorf("session %s expired; run \"uploads prune\" and upload again", sess.ID)
		}

		if _, err = f.Seek(sess.Offset, io.SeekStart); err != nil {
			return fmt.Errorf("seeking %s: %w", local, err)
		}
	} else {
		if _, err = d.CreateChunkedUpload(ctx, remote, nil); err != nil {
			return err
		}

		sess, err = store.Create(ctx, remote, size, uploads.DefaultTTL)
		if err != nil {
			return err
		}
	}

	chunkSize, _ := cmd.Flags().GetInt64("chunk-size")
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	showProgress := !flagQuiet && isatty.IsTerminal(os.Stderr.Fd())

	var progress io.Writer
	if showProgress {
		progress = os.Stderr
	}

	offset, err := pushChunks(ctx, d, store, f, remote, sess, size, chunkSize, progress)
	if err != nil {
		return err
	}

	if showProgress {
		fmt.Fprintln(os.Stderr)
	}

	if err = d.FinishChunkedUpload(ctx, remote, sess.ID); err != nil {
		return err
	}

	if err = store.Delete(ctx, sess.ID); err != nil {
		return err
	}

	statusf(flagQuiet, "Uploaded %s -> %s (%s)\n", local, remote, formatSize(offset))

	return nil
}

// chunkWriter is the slice of the driver contract the chunk loop needs.
type chunkWriter interface {
	WriteChunk(ctx context.Context, filepath string, content io.Reader, offset int64, token any) (int64, error)
}

// pushChunks streams src to remote in chunkSize pieces, starting at the
// session's committed offset and recording each committed offset back in
// the ledger. It returns the offset reached, which on success equals the
// final object size.
func pushChunks(
	ctx context.Context, d chunkWriter, store *uploads.Store, src io.Reader,
	remote string, sess *uploads.Session, size, chunkSize int64, progress io.Writer,
) (int64, error) {
	offset := sess.Offset
	buf := make([]byte, chunkSize)

	for offset < size {
		n, readErr := io.ReadFull(src, buf)
		if n > 0 {
			total, err := d.WriteChunk(ctx, remote, bytes.NewReader(buf[:n]), offset, sess.ID)
			if err != nil {
				return offset, fmt.Errorf("chunk at offset %d failed (resume with --resume): %w", offset, err)
			}

			offset = total

			if err = store.SetOffset(ctx, sess.ID, offset); err != nil {
				return offset, err
			}

			if progress != nil {
				fmt.Fprintf(progress, "\r%s / %s", formatSize(offset), formatSize(size))
			}
		}

		if errors.Is(readErr, io.EOF) || errors.Is(readErr, io.ErrUnexpectedEOF) {
			break
		}

		if readErr != nil {
			return offset, fmt.Errorf("reading upload source: %w", readErr)
		}
	}

	return offset, nil
}

func newUploadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uploads",
		Short: "Manage resumable upload sessions",
	}

	cmd.AddCommand(newUploadsListCmd(), newUploadsAbortCmd(), newUploadsPruneCmd())

	return cmd
}

func newUploadsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List in-flight upload sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openLedger(cmd.Context(), buildLogger())
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, err := store.List(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			for _, sess := range sessions {
				state := "active"
				if sess.Expired(time.Now()) {
					state = "expired"
				}

				fmt.Fprintf(out, "%s  %s  %s / %s  %s\n",
					sess.ID, sess.RemotePath,
					formatSize(sess.Offset), formatSize(sess.TotalSize), state)
			}

			return nil
		},
	}
}

func newUploadsAbortCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "abort <session-id>",
		Short: "Abort an upload and delete its partial remote object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := buildLogger()

			d, err := newDriver(logger)
			if err != nil {
				return err
			}

			store, err := openLedger(cmd.Context(), logger)
			if err != nil {
				return err
			}
			defer store.Close()

			sess, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if err := d.DeleteChunkedUpload(cmd.Context(), sess.RemotePath, sess.ID); err != nil {
				return err
			}

			return store.Delete(cmd.Context(), sess.ID)
		},
	}
}

func newUploadsPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove expired upload sessions from the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openLedger(cmd.Context(), buildLogger())
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.Prune(cmd.Context(), time.Now())
			if err != nil {
				return err
			}

			statusf(flagQuiet, "Pruned %d session(s)\n", n)

			return nil
		},
	}
}

// openLedger opens the per-user upload-session database.
func openLedger(ctx context.Context, logger *slog.Logger) (*uploads.Store, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return nil, fmt.Errorf("locating cache dir: %w", err)
	}

	dir = filepath.Join(dir, "webdav-go")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}

	return uploads.Open(ctx, filepath.Join(dir, "uploads.db"), logger)
}
