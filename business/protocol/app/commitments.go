package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/nightfall-sdk/business/protocol/domain"
	"github.com/fd1az/nightfall-sdk/internal/apperror"
	"github.com/fd1az/nightfall-sdk/internal/logger"
)

const tracerName = "github.com/fd1az/nightfall-sdk/business/protocol/app"

// CommitmentService lists commitments and backs them up to flat JSON files.
type CommitmentService struct {
	gateway Gateway
	logger  logger.LoggerInterface
	tracer  trace.Tracer
}

// NewCommitmentService creates a new CommitmentService.
func NewCommitmentService(gateway Gateway, log logger.LoggerInterface) *CommitmentService {
	return &CommitmentService{
		gateway: gateway,
		logger:  log,
		tracer:  otel.Tracer(tracerName),
	}
}

// List returns the commitments held under keys.
func (s *CommitmentService) List(ctx context.Context, keys *domain.ZkpKeySet) ([]domain.Commitment, error) {
	if !keys.Complete() {
		return nil, apperror.State(apperror.CodeInvalidState, "no L2 keys for this session")
	}
	return s.gateway.FetchCommitmentsByKeys(ctx, []string{keys.CompressedZkpPublicKey})
}

// Export writes the commitments held under keys to dir/filename as a JSON
// array and returns how many were written.
func (s *CommitmentService) Export(ctx context.Context, keys *domain.ZkpKeySet, dir, filename string) (int, error) {
	ctx, span := s.tracer.Start(ctx, "commitments.export",
		trace.WithAttributes(attribute.String("path", filepath.Join(dir, filename))),
	)
	defer span.End()

	if filename == "" {
		return 0, apperror.Validation(apperror.CodeRequiredField, "filename")
	}

	commitments, err := s.List(ctx, keys)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	if commitments == nil {
		commitments = []domain.Commitment{}
	}

	data, err := json.Marshal(commitments)
	if err != nil {
		return 0, fmt.Errorf("encode commitments: %w", err)
	}

	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return 0, fmt.Errorf("write %s: %w", path, err)
	}

	span.SetAttributes(attribute.Int("count", len(commitments)))
	s.logger.Info(ctx, "commitments exported", "path", path, "count", len(commitments))

	return len(commitments), nil
}

// Import reads a backup, checks that every commitment belongs to
// compressedKey and saves them through the service. Nothing is saved when
// any commitment belongs to another key.
func (s *CommitmentService) Import(ctx context.Context, dir, filename, compressedKey string) (int, error) {
	path := filepath.Join(dir, filename)

	ctx, span := s.tracer.Start(ctx, "commitments.import",
		trace.WithAttributes(attribute.String("path", path)),
	)
	defer span.End()

	if compressedKey == "" {
		return 0, apperror.Validation(apperror.CodeRequiredField, "compressedZkpPublicKey")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, apperror.New(apperror.CodeNotFound, apperror.WithCause(err), apperror.WithContext(path))
	}

	var commitments []domain.Commitment
	if err := json.Unmarshal(data, &commitments); err != nil {
		return 0, apperror.New(apperror.CodeInvalidFormat, apperror.WithCause(err), apperror.WithContext(path))
	}

	if err := domain.VerifyOwnership(commitments, compressedKey); err != nil {
		span.RecordError(err)
		return 0, err
	}

	if len(commitments) == 0 {
		return 0, nil
	}

	if err := s.gateway.SaveCommitments(ctx, commitments); err != nil {
		span.RecordError(err)
		return 0, err
	}

	span.SetAttributes(attribute.Int("count", len(commitments)))
	s.logger.Info(ctx, "commitments imported", "path", path, "count", len(commitments))

	return len(commitments), nil
}
