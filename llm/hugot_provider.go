package llm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
)

// PrepareModel downloads modelName's ONNX weights into ./models if absent,
// returning the local path (adapted from the teacher's helper.PrepareModel).
func PrepareModel(modelName, onnxFilePath string) (string, error) {
	modelDir := "./models"
	modelPath := filepath.Join(modelDir, strings.ReplaceAll(modelName, "/", "_"))

	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		if err := os.MkdirAll(modelDir, 0755); err != nil {
			return "", fmt.Errorf("create model directory: %w", err)
		}
		downloadOptions := hugot.NewDownloadOptions()
		downloadOptions.OnnxFilePath = onnxFilePath
		downloaded, err := hugot.DownloadModel(modelName, modelDir, downloadOptions)
		if err != nil {
			return "", fmt.Errorf("download model: %w", err)
		}
		modelPath = downloaded
	}

	return modelPath, nil
}

var nerLabels = []string{
	"person", "organization", "technology", "product", "location", "event",
}

// HugotNER builds an ExtractFunc backed by a local ONNX NER model, run
// through hugot's Go backend.
func HugotNER(modelName string) (ExtractFunc, func() error, error) {
	modelPath, err := PrepareModel(modelName, "onnx/model.onnx")
	if err != nil {
		return nil, nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, nil, fmt.Errorf("create hugot session: %w", err)
	}

	cfg := hugot.TokenClassificationConfig{
		ModelPath: modelPath,
		Name:      "graphrag-ner",
		Options: []hugot.TokenClassificationOption{
			pipelines.WithSimpleAggregation(),
			pipelines.WithIgnoreLabels([]string{"O"}),
		},
	}
	nerPipeline, err := hugot.NewPipeline(session, cfg)
	if err != nil {
		_ = session.Destroy()
		return nil, nil, fmt.Errorf("create NER pipeline: %w", err)
	}

	extract := func(ctx context.Context, text string) (ExtractResult, error) {
		result, err := nerPipeline.RunPipeline([]string{text})
		if err != nil {
			return ExtractResult{}, fmt.Errorf("run NER: %w", err)
		}
		if len(result.Entities) == 0 {
			return ExtractResult{}, nil
		}

		seen := map[string]bool{}
		var entities []ExtractedEntity
		for _, e := range result.Entities[0] {
			name := strings.TrimSpace(e.Word)
			if len(name) < 2 || strings.HasPrefix(name, "#") {
				continue
			}
			key := strings.ToLower(name)
			if seen[key] {
				continue
			}
			seen[key] = true
			entities = append(entities, ExtractedEntity{
				Name:       name,
				Label:      normalizeBIO(e.Entity),
				Confidence: float64(e.Score),
			})
		}

		return ExtractResult{Entities: entities}, nil
	}

	return extract, session.Destroy, nil
}

func normalizeBIO(label string) string {
	if strings.HasPrefix(label, "B-") || strings.HasPrefix(label, "I-") {
		return label[2:]
	}
	return label
}

// HugotEmbedder builds an EmbedFunc from a sentence-embedding ONNX model.
func HugotEmbedder(modelName string) (EmbedFunc, func() error, error) {
	modelPath, err := PrepareModel(modelName, "onnx/model.onnx")
	if err != nil {
		return nil, nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, nil, fmt.Errorf("create hugot session: %w", err)
	}

	cfg := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "graphrag-embedder",
	}
	embedPipeline, err := hugot.NewPipeline(session, cfg)
	if err != nil {
		_ = session.Destroy()
		return nil, nil, fmt.Errorf("create embedding pipeline: %w", err)
	}

	embed := func(ctx context.Context, text string) ([]float32, error) {
		result, err := embedPipeline.RunPipeline([]string{text})
		if err != nil {
			return nil, fmt.Errorf("run embedding: %w", err)
		}
		if len(result.Embeddings) == 0 {
			return nil, nil
		}
		return result.Embeddings[0], nil
	}

	return embed, session.Destroy, nil
}
