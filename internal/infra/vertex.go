package infra

import (
	"context"
	"fmt"
	"strings"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/structpb"
)

// VertexPredictor calls a deployed Vertex AI endpoint.
type VertexPredictor struct {
	client   *aiplatform.PredictionClient
	endpoint string
}

func NewVertexPredictor(ctx context.Context, projectID, region, endpointID string) (*VertexPredictor, error) {
	client, err := aiplatform.NewPredictionClient(ctx,
		option.WithEndpoint(fmt.Sprintf("%s-aiplatform.googleapis.com:443", region)),
	)
	if err != nil {
		return nil, fmt.Errorf("vertex prediction client: %w", err)
	}
	return &VertexPredictor{
		client:   client,
		endpoint: EndpointName(projectID, region, endpointID),
	}, nil
}

// EndpointName accepts either a full resource name or a bare endpoint id.
func EndpointName(projectID, region, endpointID string) string {
	if strings.HasPrefix(endpointID, "projects/") {
		return endpointID
	}
	return fmt.Sprintf("projects/%s/locations/%s/endpoints/%s", projectID, region, endpointID)
}

func (p *VertexPredictor) Predict(ctx context.Context, instances []map[string]any) ([]any, error) {
	values := make([]*structpb.Value, 0, len(instances))
	for _, inst := range instances {
		v, err := structpb.NewValue(inst)
		if err != nil {
			return nil, fmt.Errorf("vertex instance: %w", err)
		}
		values = append(values, v)
	}

	resp, err := p.client.Predict(ctx, &aiplatformpb.PredictRequest{
		Endpoint:  p.endpoint,
		Instances: values,
	})
	if err != nil {
		return nil, fmt.Errorf("vertex predict %s: %w", p.endpoint, err)
	}

	out := make([]any, 0, len(resp.GetPredictions()))
	for _, v := range resp.GetPredictions() {
		out = append(out, v.AsInterface())
	}
	return out, nil
}

func (p *VertexPredictor) Close() error {
	return p.client.Close()
}
