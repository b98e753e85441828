package storage

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"montage/internal/adapters/storage/gdrive"
	"montage/internal/adapters/storage/localfs"
	"montage/internal/adapters/storage/minio"
	"montage/internal/pkg/env"
)

// Config selects and configures one provider.
type Config struct {
	Provider string

	LocalRoot string

	GDriveClientID     string
	GDriveClientSecret string
	GDriveRefreshToken string
	GDriveFolderID     string

	Minio minio.Config
	// MinioCreateBucket makes the bucket on startup when missing.
	MinioCreateBucket bool
}

// ConfigFromEnv reads STORAGE_PROVIDER and the provider's own settings.
func ConfigFromEnv() Config {
	return Config{
		Provider:           strings.ToLower(env.Str("STORAGE_PROVIDER", "localfs")),
		LocalRoot:          env.Str("STORAGE_LOCAL_ROOT", "/data"),
		GDriveClientID:     env.Str("GDRIVE_CLIENT_ID", ""),
		GDriveClientSecret: env.Str("GDRIVE_CLIENT_SECRET", ""),
		GDriveRefreshToken: env.Str("GDRIVE_REFRESH_TOKEN", ""),
		GDriveFolderID:     env.Str("GDRIVE_FOLDER_ID", ""),
		Minio: minio.Config{
			Endpoint:  env.Str("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: env.Str("MINIO_ACCESS_KEY", ""),
			SecretKey: env.Str("MINIO_SECRET_KEY", ""),
			Bucket:    env.Str("MINIO_BUCKET", "montage"),
			UseSSL:    env.Bool("MINIO_USE_SSL", false),
			Region:    env.Str("MINIO_REGION", ""),
		},
		MinioCreateBucket: env.Bool("MINIO_CREATE_BUCKET", true),
	}
}

func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "", "localfs":
		if cfg.LocalRoot == "" {
			return nil, fmt.Errorf("localfs storage needs STORAGE_LOCAL_ROOT")
		}
		return localfs.New(cfg.LocalRoot), nil

	case "gdrive":
		return newGDriveProvider(ctx, cfg)

	case "minio":
		c, err := minio.New(cfg.Minio)
		if err != nil {
			return nil, err
		}
		if cfg.MinioCreateBucket {
			if err := c.EnsureBucket(ctx, cfg.Minio.Region); err != nil {
				return nil, err
			}
		}
		return c, nil

	default:
		return nil, fmt.Errorf("unknown storage provider: %s", cfg.Provider)
	}
}

func newGDriveProvider(ctx context.Context, cfg Config) (Provider, error) {
	var missing []string
	if cfg.GDriveClientID == "" {
		missing = append(missing, "GDRIVE_CLIENT_ID")
	}
	if cfg.GDriveClientSecret == "" {
		missing = append(missing, "GDRIVE_CLIENT_SECRET")
	}
	if cfg.GDriveRefreshToken == "" {
		missing = append(missing, "GDRIVE_REFRESH_TOKEN")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("gdrive storage needs %s", strings.Join(missing, ", "))
	}

	conf := &oauth2.Config{
		ClientID:     cfg.GDriveClientID,
		ClientSecret: cfg.GDriveClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope},
	}
	httpClient := conf.Client(ctx, &oauth2.Token{RefreshToken: cfg.GDriveRefreshToken})

	srv, err := drive.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}
	return gdrive.NewClient(srv, cfg.GDriveFolderID), nil
}
