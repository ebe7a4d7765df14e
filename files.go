package main

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/storagekit/webdav-go/driver"
)

// putConcurrency bounds parallel uploads in `put` with multiple files.
const putConcurrency = 4

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [prefix]",
		Short: "List files under a prefix, recursively",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLs,
	}
}

func runLs(cmd *cobra.Command, args []string) error {
	d, err := newDriver(buildLogger())
	if err != nil {
		return err
	}

	prefix := ""
	if len(args) == 1 {
		prefix = args[0]
	}

	paths, err := d.List(cmd.Context(), prefix)
	if err != nil {
		return err
	}

	for _, p := range paths {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}

	return nil
}

func newStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <path>",
		Short: "Display file metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  runStat,
	}
}

func runStat(cmd *cobra.Command, args []string) error {
	d, err := newDriver(buildLogger())
	if err != nil {
		return err
	}

	meta, err := d.Stat(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Path:     %s\n", args[0])
	fmt.Fprintf(out, "Size:     %s (%d bytes)\n", formatSize(meta.Size), meta.Size)
	fmt.Fprintf(out, "Modified: %s\n", formatTime(meta.Modified))

	return nil
}

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <remote-path> [local-path]",
		Short: "Download a file",
		Long: `Download a file. With no local path the file is written next to the
current directory under its remote base name; use "-" to write to stdout.

--range downloads only part of the file, e.g. --range 0-1023 for the
first KiB or --range 4096- for everything from byte 4096 on.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runGet,
	}

	cmd.Flags().String("range", "", "byte range start-end (end optional)")

	return cmd
}

func runGet(cmd *cobra.Command, args []string) error {
	d, err := newDriver(buildLogger())
	if err != nil {
		return err
	}

	opts, err := parseRangeFlag(cmd.Flag("range").Value.String())
	if err != nil {
		return err
	}

	stream, err := d.Read(cmd.Context(), args[0], opts)
	if err != nil {
		return err
	}
	defer stream.Close()

	var out io.Writer

	localPath := path.Base(args[0])
	if len(args) == 2 {
		localPath = args[1]
	}

	if localPath == "-" {
		out = cmd.OutOrStdout()
	} else {
		f, createErr := os.Create(localPath)
		if createErr != nil {
			return fmt.Errorf("creating %s: %w", localPath, createErr)
		}
		defer f.Close()

		out = f
	}

	n, err := io.Copy(out, stream)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", args[0], err)
	}

	statusf(flagQuiet, "Downloaded %s (%s)\n", args[0], formatSize(n))

	return nil
}

// parseRangeFlag parses "start-end" or "start-" into read options.
func parseRangeFlag(raw string) (*driver.ReadOptions, error) {
	if raw == "" {
		return nil, nil
	}

	startStr, endStr, ok := strings.Cut(raw, "-")
	if !ok {
		return nil, fmt.Errorf("invalid range %q (use start-end or start-)", raw)
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid range start %q", startStr)
	}

	end := int64(-1)

	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid range end %q", endStr)
		}
	}

	return &driver.ReadOptions{Range: &driver.ByteRange{Start: start, End: end}}, nil
}

func newPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <local-path>... [remote-dir]",
		Short: "Upload one or more files",
		Long: `Upload files in one request each. With a single local path the last
argument may be the full remote path; with several local paths the last
argument is the remote directory they are uploaded into. Files upload
concurrently. For large files prefer "upload", which is resumable.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runPut,
	}
}

func runPut(cmd *cobra.Command, args []string) error {
	d, err := newDriver(buildLogger())
	if err != nil {
		return err
	}

	locals := args
	remoteDir := ""

	if len(args) >= 2 {
		locals = args[:len(args)-1]
		remoteDir = args[len(args)-1]
	}

	// Single file: the remote argument is the full destination path
	// unless it ends with a slash.
	if len(locals) == 1 && remoteDir != "" && !strings.HasSuffix(remoteDir, "/") {
		return putOne(cmd, d, locals[0], remoteDir)
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(putConcurrency)

	for _, local := range locals {
		remote := path.Join(strings.TrimSuffix(remoteDir, "/"), filepath.Base(local))

		g.Go(func() error {
			f, openErr := os.Open(local)
			if openErr != nil {
				return fmt.Errorf("opening %s: %w", local, openErr)
			}
			defer f.Close()

			if writeErr := d.Write(ctx, remote, f); writeErr != nil {
				return fmt.Errorf("uploading %s: %w", local, writeErr)
			}

			statusf(flagQuiet, "Uploaded %s -> %s\n", local, remote)

			return nil
		})
	}

	return g.Wait()
}

func putOne(cmd *cobra.Command, d driver.Driver, local, remote string) error {
	f, err := os.Open(local)
	if err != nil {
		return fmt.Errorf("opening %s: %w", local, err)
	}
	defer f.Close()

	if err := d.Write(cmd.Context(), remote, f); err != nil {
		return fmt.Errorf("uploading %s: %w", local, err)
	}

	statusf(flagQuiet, "Uploaded %s -> %s\n", local, remote)

	return nil
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>",
		Short: "Delete a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDriver(buildLogger())
			if err != nil {
				return err
			}

			return d.Delete(cmd.Context(), args[0])
		},
	}
}

func newMvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <src> <dest>",
		Short: "Move or rename a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDriver(buildLogger())
			if err != nil {
				return err
			}

			return d.Move(cmd.Context(), args[0], args[1])
		},
	}
}

func newCpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cp <src> <dest>",
		Short: "Copy a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDriver(buildLogger())
			if err != nil {
				return err
			}

			return d.Copy(cmd.Context(), args[0], args[1])
		},
	}
}
