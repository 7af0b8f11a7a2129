package scans

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"time"

	"github.com/google/uuid"

	"skinscan-backend/internal/shared/metrics"
	"skinscan-backend/internal/shared/storage/object"
	"skinscan-backend/internal/shared/telemetry"
	"skinscan-backend/internal/shared/util"
	"skinscan-backend/internal/vision"
)

// Service runs the analysis pipeline and serves scan history.
type Service struct {
	Repo       Repo
	Vision     vision.Client
	Classifier *Classifier
	// Archive is optional. When set, photos of completed scans are stored
	// before the scan row is written.
	Archive object.Store
	Now     func() time.Time
	NewID   func() string
}

// AnalysisResult is what the analyze endpoint reports back.
type AnalysisResult struct {
	Status      OutcomeState
	Reason      string
	Report      Report
	RawAnalysis json.RawMessage
	ScanID      *string
}

// Analyze validates req, makes a single model call, classifies and
// normalizes the reply, and persists completed results. Only validation
// errors and model transport failures are returned as errors.
func (s *Service) Analyze(ctx context.Context, req AnalysisRequest) (AnalysisResult, error) {
	req, err := ValidateRequest(req)
	if err != nil {
		return AnalysisResult{}, err
	}
	if s.Vision == nil {
		return AnalysisResult{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, vision.ErrNotConfigured)
	}

	metrics.IncScanStarted()
	start := time.Now()
	reply, err := s.Vision.CompleteVision(ctx, vision.SkinScanInput(req.Image))
	metrics.ObserveModelDurationMs(metrics.SinceMs(start))
	if err != nil {
		metrics.IncModelFailed()
		telemetry.Error("vision.request_failed", map[string]any{
			"user_id":     req.UserID,
			"duration_ms": metrics.SinceMs(start),
			"error":       err,
		})
		return AnalysisResult{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	outcome := s.classifier().Evaluate(reply)
	metrics.IncScanOutcome(string(outcome.State))
	fields := map[string]any{
		"user_id":       req.UserID,
		"status":        string(outcome.State),
		"finish_reason": string(reply.FinishReason),
		"model":         reply.Model,
		"content_len":   len(reply.Content),
	}
	if outcome.Reason != "" {
		fields["reason"] = outcome.Reason
	}
	if outcome.Marker != "" {
		fields["marker"] = outcome.Marker
	}
	telemetry.Info("scan.classified", fields)

	result := AnalysisResult{
		Status:      outcome.State,
		Reason:      outcome.Reason,
		Report:      outcome.Report,
		RawAnalysis: outcome.Raw,
	}
	if outcome.State == StatusCompleted {
		result.ScanID = s.persist(ctx, req, outcome.Report)
	}
	return result, nil
}

// persist archives the photo when configured and inserts the scan. Storage
// failures are logged and yield a nil id; the analysis is still returned.
func (s *Service) persist(ctx context.Context, req AnalysisRequest, report Report) *string {
	if s.Repo == nil {
		return nil
	}
	scan := Scan{
		ID:              s.newID(),
		UserID:          req.UserID,
		Issues:          report.Issues,
		Recommendations: report.Recommendations,
		CreatedAt:       s.now(),
	}
	if s.Archive != nil {
		key, err := s.archive(ctx, scan, req.Image)
		if err != nil {
			metrics.IncArchiveFailed()
			telemetry.Warn("scan.archive_failed", map[string]any{
				"user_id": scan.UserID,
				"scan_id": scan.ID,
				"error":   err,
			})
		} else {
			scan.ImageKey = key
		}
	}

	if err := s.Repo.Insert(ctx, scan); err != nil {
		metrics.IncPersistFailed()
		telemetry.Error("scan.persist_failed", map[string]any{
			"user_id": scan.UserID,
			"scan_id": scan.ID,
			"error":   err,
		})
		return nil
	}
	metrics.IncScanPersisted()
	telemetry.Info("scan.persisted", map[string]any{
		"user_id":     scan.UserID,
		"scan_id":     scan.ID,
		"issue_count": len(scan.Issues),
		"has_image":   scan.HasImage(),
	})
	id := scan.ID
	return &id
}

func (s *Service) archive(ctx context.Context, scan Scan, imageRef string) (string, error) {
	data, contentType, err := util.DecodeDataURL(imageRef)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	key := path.Join("scans", util.HashUserKey(scan.UserID), scan.ID+util.ImageExt(contentType))
	if _, err := s.Archive.SaveWithKey(ctx, key, contentType, bytes.NewReader(data)); err != nil {
		return "", err
	}
	return key, nil
}

// List returns the user's scans, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Scan, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}
	return s.Repo.List(ctx, ListFilter{UserID: userID})
}

// Stats aggregates the user's scan history.
func (s *Service) Stats(ctx context.Context, userID string) (Totals, error) {
	if userID == "" {
		return Totals{}, ErrUnauthorized
	}
	return s.Repo.Count(ctx, ListFilter{UserID: userID})
}

// OpenImage streams the archived photo of a scan owned by userID.
func (s *Service) OpenImage(ctx context.Context, userID, scanID string) (io.ReadCloser, string, error) {
	if userID == "" {
		return nil, "", ErrUnauthorized
	}
	scan, err := s.Repo.GetByID(ctx, scanID)
	if err != nil {
		return nil, "", err
	}
	if scan.UserID != userID || !scan.HasImage() || s.Archive == nil {
		return nil, "", ErrNotFound
	}
	rc, err := s.Archive.Open(ctx, scan.ImageKey)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return nil, "", ErrNotFound
		}
		return nil, "", err
	}
	contentType := mime.TypeByExtension(path.Ext(scan.ImageKey))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return rc, contentType, nil
}

func (s *Service) classifier() *Classifier {
	if s.Classifier == nil {
		return defaultClassifier
	}
	return s.Classifier
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

var defaultClassifier = NewClassifier()
