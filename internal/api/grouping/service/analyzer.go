package groupingService

import (
	"context"

	"FaceGrouping/pkg/deepface"
)

// workerAnalyzer asks one worker about photos. Photo references are
// translated to the local paths the worker can open.
type workerAnalyzer struct {
	client  deepface.IDeepFace
	baseURL string
	model   string
	metric  string
	paths   map[string]string
}

func (a *workerAnalyzer) path(photo string) string {
	if p, ok := a.paths[photo]; ok {
		return p
	}
	return photo
}

func (a *workerAnalyzer) CountFaces(ctx context.Context, photo string) (int, error) {
	faces, err := a.client.ExtractFaces(ctx, a.baseURL, a.path(photo))
	if err != nil {
		return 0, err
	}
	return len(faces), nil
}

func (a *workerAnalyzer) Distance(ctx context.Context, photo1, photo2 string) (float64, error) {
	res, err := a.client.Verify(ctx, a.baseURL, deepface.VerifyRequest{
		Img1Path:       a.path(photo1),
		Img2Path:       a.path(photo2),
		ModelName:      a.model,
		DistanceMetric: a.metric,
	})
	if err != nil {
		return 0, err
	}
	return res.Distance, nil
}
