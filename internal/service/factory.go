package service

import (
	"log/slog"

	"basegraph.app/insight/core/config"
	"basegraph.app/insight/internal/queue"
	"basegraph.app/insight/internal/store"
	"basegraph.app/insight/internal/views"
)

type Services struct {
	stores     *store.Stores
	txRunner   TxRunner
	blobs      store.BlobStore
	producer   queue.Producer
	registry   *views.Registry
	classifier *views.Classifier
	processing config.ProcessingConfig
	logger     *slog.Logger
}

func NewServices(
	stores *store.Stores,
	txRunner TxRunner,
	blobs store.BlobStore,
	producer queue.Producer,
	registry *views.Registry,
	classifier *views.Classifier,
	processing config.ProcessingConfig,
	logger *slog.Logger,
) *Services {
	if logger == nil {
		logger = slog.Default()
	}
	return &Services{
		stores:     stores,
		txRunner:   txRunner,
		blobs:      blobs,
		producer:   producer,
		registry:   registry,
		classifier: classifier,
		processing: processing,
		logger:     logger,
	}
}

func (s *Services) Upload() UploadService {
	return NewUploadService(s.txRunner, s.blobs, s.producer, s.processing, s.logger)
}

func (s *Services) Documents() DocumentService {
	return NewDocumentService(s.stores, s.txRunner, s.blobs, s.logger)
}

func (s *Services) Results() ResultService {
	return NewResultService(s.stores)
}

func (s *Services) ViewSwitch() ViewSwitchService {
	return NewViewSwitchService(s.stores, s.txRunner, s.registry, s.logger)
}

func (s *Services) Recommend() RecommendService {
	return NewRecommendService(s.stores, s.classifier)
}
