// Package cloudinary keeps an off-site copy of every submitted file.
package cloudinary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config holds the account credentials and the root folder of the archive.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Archiver stores submissions as raw assets under
// <folder>/assignment-<id>/student-<id>/.
type Archiver struct {
	uploader *uploader.API
	root     string
	logger   zerolog.Logger
}

// New validates the credentials and builds the archiver.
func New(cfg Config, logger zerolog.Logger) (*Archiver, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, errors.New("cloudinary: cloud name, api key and api secret are required")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("cloudinary: init client: %w", err)
	}

	return &Archiver{
		uploader: &cld.Upload,
		root:     strings.Trim(cfg.Folder, "/"),
		logger:   logger.With().Str("component", "cloudinary_archiver").Logger(),
	}, nil
}

// Archive uploads content and returns its https URL. Every call creates a new
// asset, so a resubmission never overwrites the previous copy.
func (a *Archiver) Archive(ctx context.Context, assignmentID, studentID uint, fileName string, content io.Reader) (string, error) {
	params := uploader.UploadParams{
		Folder:         a.folderFor(assignmentID, studentID),
		PublicID:       publicID(fileName),
		ResourceType:   "raw",
		Overwrite:      api.Bool(false),
		UniqueFilename: api.Bool(false),
		Tags: api.CldAPIArray{
			"assignment-" + strconv.FormatUint(uint64(assignmentID), 10),
			"student-" + strconv.FormatUint(uint64(studentID), 10),
		},
	}

	result, err := a.uploader.Upload(ctx, content, params)
	if err != nil {
		return "", fmt.Errorf("cloudinary: upload %s: %w", params.PublicID, err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary: upload %s: %s", params.PublicID, result.Error.Message)
	}

	a.logger.Info().
		Str("public_id", result.PublicID).
		Int("bytes", result.Bytes).
		Msg("submission archived")

	return result.SecureURL, nil
}

func (a *Archiver) folderFor(assignmentID, studentID uint) string {
	return path.Join(a.root,
		"assignment-"+strconv.FormatUint(uint64(assignmentID), 10),
		"student-"+strconv.FormatUint(uint64(studentID), 10))
}

// publicID keeps the readable, ASCII part of the file name (extension
// included, raw assets are served as uploaded) and prefixes a short random
// token.
func publicID(fileName string) string {
	name := path.Base(strings.ReplaceAll(fileName, `\`, "/"))
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_':
			return r
		default:
			return '-'
		}
	}, name)
	name = strings.Trim(name, "-.")
	if name == "" {
		name = "soumission"
	}
	return uuid.NewString()[:8] + "-" + name
}
