package deepface

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
)

const defaultTimeout = 10 * time.Minute

type FacialArea struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type Face struct {
	FacialArea FacialArea `json:"facial_area"`
	Confidence float64    `json:"confidence"`
}

type VerifyRequest struct {
	Img1Path       string `json:"img1_path"`
	Img2Path       string `json:"img2_path"`
	ModelName      string `json:"model_name"`
	DistanceMetric string `json:"distance_metric"`
}

type VerifyResult struct {
	Verified  bool    `json:"verified"`
	Distance  float64 `json:"distance"`
	Threshold float64 `json:"threshold"`
}

// WorkerError is a non-2xx answer from the worker.
type WorkerError struct {
	Status  int
	Message string
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("worker returned %d: %s", e.Status, e.Message)
}

type IDeepFace interface {
	ExtractFaces(ctx context.Context, baseURL, imgPath string) ([]Face, error)
	Verify(ctx context.Context, baseURL string, req VerifyRequest) (VerifyResult, error)
}

type client struct{}

func New() IDeepFace {
	return &client{}
}

func (c *client) ExtractFaces(ctx context.Context, baseURL, imgPath string) ([]Face, error) {
	var out struct {
		Faces []Face `json:"faces"`
	}
	if err := c.post(ctx, baseURL+"/extract_faces", fiber.Map{"img_path": imgPath}, &out); err != nil {
		return nil, err
	}
	return out.Faces, nil
}

func (c *client) Verify(ctx context.Context, baseURL string, req VerifyRequest) (VerifyResult, error) {
	var out VerifyResult
	if err := c.post(ctx, baseURL+"/verify", req, &out); err != nil {
		return VerifyResult{}, err
	}
	return out, nil
}

// post runs one JSON call on a fiber client agent. The agent has no context
// support, so its timeout follows the context deadline and cancellation is
// observed by abandoning the call.
func (c *client) post(ctx context.Context, url string, body, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	timeout := defaultTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return context.DeadlineExceeded
		}
	}

	type result struct {
		code int
		body []byte
		errs []error
	}
	done := make(chan result, 1)

	go func() {
		agent := fiber.Post(url)
		agent.JSONEncoder(jsoniter.Marshal)
		agent.JSON(body)
		agent.Timeout(timeout)
		code, respBody, errs := agent.Bytes()
		done <- result{code: code, body: respBody, errs: errs}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if len(res.errs) > 0 {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("call %s: %w", url, errors.Join(res.errs...))
	}

	if res.code < 200 || res.code >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		msg := string(res.body)
		if jsoniter.Unmarshal(res.body, &errBody) == nil && errBody.Error != "" {
			msg = errBody.Error
		}
		return &WorkerError{Status: res.code, Message: msg}
	}

	if err := jsoniter.Unmarshal(res.body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", url, err)
	}
	return nil
}
