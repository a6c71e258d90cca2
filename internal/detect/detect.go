// Package detect runs uploaded ultrasound images through two object-detection
// models and reports the class labels each one finds.
package detect

import (
	"context"
	"fmt"
	"image"

	"golang.org/x/sync/errgroup"

	"github.com/appendiscan/backend/internal/metrics"
)

// Detector returns one label per accepted detection, highest confidence
// first. Labels repeat when a class is detected more than once.
type Detector interface {
	Name() string
	Detect(ctx context.Context, img image.Image) ([]string, error)
}

// Result is the response body of /predict.
type Result struct {
	Model1Predictions []string `json:"model1_predictions"`
	Model2Predictions []string `json:"model2_predictions"`
}

// Gateway fans one image out to both models.
type Gateway struct {
	model1 Detector
	model2 Detector
}

func NewGateway(model1, model2 Detector) *Gateway {
	return &Gateway{model1: model1, model2: model2}
}

// Predict runs both models on img concurrently. Either failure fails the
// whole prediction; no partial result is returned.
func (g *Gateway) Predict(ctx context.Context, img image.Image) (Result, error) {
	var res Result
	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		labels, err := run(ctx, g.model1, img)
		res.Model1Predictions = labels
		return err
	})
	eg.Go(func() error {
		labels, err := run(ctx, g.model2, img)
		res.Model2Predictions = labels
		return err
	})

	if err := eg.Wait(); err != nil {
		return Result{}, err
	}
	return res, nil
}

func run(ctx context.Context, d Detector, img image.Image) ([]string, error) {
	defer metrics.ObserveUpstream("model:" + d.Name())()

	labels, err := d.Detect(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", d.Name(), err)
	}
	if labels == nil {
		labels = []string{}
	}
	metrics.RecordDetections(d.Name(), len(labels))
	return labels, nil
}
