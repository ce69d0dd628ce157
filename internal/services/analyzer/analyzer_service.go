package analyzer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Windi-Fikriyansyah/healthmate_be/internal/metrics"
)

var ErrUnavailable = errors.New("analysis module unavailable")

type Service struct {
	client Client
	cache  Cache
	ttl    time.Duration
	log    logrus.FieldLogger
}

// NewService wires the analysis path. A nil client means the module is not
// deployed on this server; that is decided once here and reported through
// Available. A nil cache disables caching.
func NewService(client Client, cache Cache, ttl time.Duration, log logrus.FieldLogger) *Service {
	return &Service{client: client, cache: cache, ttl: ttl, log: log}
}

func (s *Service) Available() bool {
	return s.client != nil
}

type Analysis struct {
	Result Result
	Digest string
	Cached bool
}

// AnalyzeFile runs the image at path through the module, reusing a cached
// result for byte-identical images.
func (s *Service) AnalyzeFile(ctx context.Context, path, fileName string) (*Analysis, error) {
	if !s.Available() {
		metrics.AnalysesTotal.WithLabelValues("unavailable").Inc()
		return nil, ErrUnavailable
	}

	f, err := os.Open(path)
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		metrics.AnalysesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("digest upload: %w", err)
	}
	digest := hex.EncodeToString(h.Sum(nil))

	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, cacheKey(digest))
		if err != nil {
			s.log.WithError(err).Warn("analysis cache read failed")
		} else if ok {
			metrics.AnalysesTotal.WithLabelValues("cached").Inc()
			return &Analysis{Result: cached, Digest: digest, Cached: true}, nil
		}
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		metrics.AnalysesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	result, err := s.client.Analyze(ctx, fileName, f)
	if err != nil {
		metrics.AnalysesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.AnalysesTotal.WithLabelValues("ok").Inc()

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey(digest), result, s.ttl); err != nil {
			s.log.WithError(err).Warn("analysis cache write failed")
		}
	}
	return &Analysis{Result: result, Digest: digest}, nil
}
