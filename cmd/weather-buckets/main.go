package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/i474232898/weather-s3-ingest/internal/app"
	"github.com/i474232898/weather-s3-ingest/internal/store"
)

const usage = `usage: weather-buckets [-yes] create|delete|list
       weather-buckets put <file> [key]
       weather-buckets get <key> <file>

  create  create S3_BUCKET_NAME in AWS_REGION
  delete  delete every object in S3_BUCKET_NAME, then the bucket (needs -yes)
  list    list buckets visible to the current credentials
  put     upload a local file to S3_BUCKET_NAME (key defaults to the file name)
  get     download an object from S3_BUCKET_NAME to a local file
`

// command is a parsed invocation.
type command struct {
	action string
	key    string
	file   string
}

func parseArgs(args []string) (command, error) {
	if len(args) == 0 {
		return command{}, errors.New("missing action")
	}
	cmd := command{action: args[0]}
	rest := args[1:]

	switch cmd.action {
	case "create", "delete", "list":
		if len(rest) != 0 {
			return command{}, fmt.Errorf("%s takes no arguments", cmd.action)
		}
	case "put":
		if len(rest) < 1 || len(rest) > 2 {
			return command{}, errors.New("put needs <file> and an optional [key]")
		}
		cmd.file = rest[0]
		cmd.key = filepath.Base(cmd.file)
		if len(rest) == 2 {
			cmd.key = rest[1]
		}
	case "get":
		if len(rest) != 2 {
			return command{}, errors.New("get needs <key> and <file>")
		}
		cmd.key, cmd.file = rest[0], rest[1]
	default:
		return command{}, fmt.Errorf("unknown action %q", cmd.action)
	}

	if cmd.file != "" && cmd.key == "" {
		return command{}, errors.New("object key must not be empty")
	}
	return cmd, nil
}

// uploadFile stores the contents of path under key.
func uploadFile(ctx context.Context, st store.ObjectStore, path, key string) (int, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	contentType := "application/octet-stream"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		contentType = store.ContentTypeJSON
	}
	if err := st.Put(ctx, key, body, contentType); err != nil {
		return 0, err
	}
	return len(body), nil
}

// downloadFile writes the object stored under key to path.
func downloadFile(ctx context.Context, st store.ObjectStore, key, path string) (int, error) {
	body, err := st.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return 0, err
	}
	return len(body), nil
}

func main() {
	yes := flag.Bool("yes", false, "confirm destructive operations")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()

	cmd, err := parseArgs(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n\n%s", err, usage)
		os.Exit(2)
	}
	os.Exit(run(cmd, *yes))
}

func run(cmd command, yes bool) int {
	action := cmd.action

	cfg, log, err := app.Bootstrap()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	if action != "list" {
		if err := cfg.ValidateBucket(); err != nil {
			log.Errorw("invalid bucket settings", "error", err)
			return 1
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s3Store, err := store.NewS3(ctx, cfg.StoreOptions().S3)
	if err != nil {
		log.Errorw("cannot create S3 client", "error", err)
		return 1
	}

	switch action {
	case "create":
		err := s3Store.CreateBucket(ctx)
		if errors.Is(err, store.ErrBucketExists) {
			fmt.Printf("Bucket %s already exists.\n", s3Store.Bucket())
			return 0
		}
		if err != nil {
			log.Errorw("failed to create bucket", "bucket", s3Store.Bucket(), "error", err)
			return 1
		}
		fmt.Printf("Bucket %s created in %s.\n", s3Store.Bucket(), cfg.Storage.Region)

	case "delete":
		if !yes {
			fmt.Fprintf(os.Stderr, "refusing to delete bucket %s and all of its objects without -yes\n", s3Store.Bucket())
			return 1
		}
		deleted, err := s3Store.DeleteBucket(ctx)
		if err != nil {
			log.Errorw("failed to delete bucket", "bucket", s3Store.Bucket(), "deleted_objects", deleted, "error", err)
			return 1
		}
		fmt.Printf("Deleted %d object(s) and bucket %s.\n", deleted, s3Store.Bucket())

	case "list":
		buckets, err := s3Store.ListBuckets(ctx)
		if err != nil {
			log.Errorw("failed to list buckets", "error", err)
			return 1
		}
		if len(buckets) == 0 {
			fmt.Println("No buckets found.")
			return 0
		}
		for _, b := range buckets {
			fmt.Printf("  %s  (created %s)\n", b.Name, b.Created.UTC().Format("2006-01-02 15:04:05"))
		}

	case "put":
		n, err := uploadFile(ctx, s3Store, cmd.file, cmd.key)
		if err != nil {
			log.Errorw("failed to upload file", "file", cmd.file, "key", cmd.key, "error", err)
			return 1
		}
		fmt.Printf("Uploaded %s (%d bytes) to s3://%s/%s.\n", cmd.file, n, s3Store.Bucket(), cmd.key)

	case "get":
		n, err := downloadFile(ctx, s3Store, cmd.key, cmd.file)
		if errors.Is(err, store.ErrNotFound) {
			fmt.Fprintf(os.Stderr, "no object stored under %s in bucket %s\n", cmd.key, s3Store.Bucket())
			return 1
		}
		if err != nil {
			log.Errorw("failed to download object", "key", cmd.key, "file", cmd.file, "error", err)
			return 1
		}
		fmt.Printf("Downloaded s3://%s/%s (%d bytes) to %s.\n", s3Store.Bucket(), cmd.key, n, cmd.file)
	}
	return 0
}
