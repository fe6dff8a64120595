package groupingService

import (
	"context"
	"time"

	"FaceGrouping/internal/api/grouping"
	groupingRepository "FaceGrouping/internal/api/grouping/repository"
	"FaceGrouping/internal/launcher"
	"FaceGrouping/pkg/deepface"
	"FaceGrouping/pkg/redis"
	"FaceGrouping/pkg/s3"
	"FaceGrouping/pkg/utils"

	"github.com/sirupsen/logrus"
)

type IGroupingService interface {
	GroupPhotos(ctx context.Context, req grouping.GroupRequest) (grouping.GroupResponse, error)
	AnalyzePhoto(ctx context.Context, req grouping.AnalyzeRequest) (grouping.AnalyzeResponse, error)
	GetRun(ctx context.Context, id string) (grouping.RunResponse, error)
}

// Runner admits work to a face analysis worker.
type Runner interface {
	Do(ctx context.Context, fn func(ctx context.Context, ep launcher.Endpoint) error) error
}

type Options struct {
	Model          string
	DistanceMetric string
	Threshold      float64
	CacheTTL       time.Duration
}

type groupingService struct {
	log        *logrus.Logger
	repository groupingRepository.Repository
	runner     Runner
	deepface   deepface.IDeepFace
	cache      redis.IRedis
	s3         s3.ItfS3
	utils      utils.IUtils
	opts       Options
}

// NewGroupingService wires the service. s3Client may be nil, in which case
// s3:// photo references are rejected.
func NewGroupingService(
	log *logrus.Logger,
	repo groupingRepository.Repository,
	runner Runner,
	deepfaceClient deepface.IDeepFace,
	cache redis.IRedis,
	s3Client s3.ItfS3,
	utils utils.IUtils,
	opts Options,
) IGroupingService {
	if opts.Model == "" {
		opts.Model = "VGG-Face"
	}
	if opts.DistanceMetric == "" {
		opts.DistanceMetric = "cosine"
	}
	if opts.Threshold <= 0 {
		opts.Threshold = 0.6
	}

	return &groupingService{
		log:        log,
		repository: repo,
		runner:     runner,
		deepface:   deepfaceClient,
		cache:      cache,
		s3:         s3Client,
		utils:      utils,
		opts:       opts,
	}
}
