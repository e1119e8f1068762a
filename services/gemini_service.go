package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"diettracker/models"
	"diettracker/utils"
)

// contentGenerator is the part of *genai.GenerativeModel the estimator uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiEstimator asks Gemini for the same JSON shape as the OpenAI engine.
type GeminiEstimator struct {
	APIKey string
	Model  string
	Retry  utils.RetryConfig

	// newModel opens a configured model; the returned func releases it.
	newModel func(ctx context.Context) (contentGenerator, func(), error)
}

func NewGeminiEstimator(apiKey, model string) *GeminiEstimator {
	if strings.TrimSpace(model) == "" {
		model = "gemini-2.5-flash"
	}
	e := &GeminiEstimator{APIKey: strings.TrimSpace(apiKey), Model: strings.TrimSpace(model), Retry: utils.DefaultRetryConfig()}
	e.newModel = e.openModel
	return e
}

func (e *GeminiEstimator) Name() string { return "gemini" }

func (e *GeminiEstimator) EstimateImage(ctx context.Context, image []byte, mimeType string) (*models.RecognitionResult, error) {
	if len(image) == 0 {
		return nil, &EstimationError{Engine: e.Name(), Op: "image", Err: errors.New("empty image")}
	}
	parts := []genai.Part{
		genai.Text(imageUserPrompt),
		&genai.Blob{MIMEType: utils.PickMIME(mimeType, "", image), Data: image},
	}
	return e.estimate(ctx, "image", parts)
}

func (e *GeminiEstimator) EstimateText(ctx context.Context, description string) (*models.RecognitionResult, error) {
	return e.estimate(ctx, "text", []genai.Part{genai.Text(textUserPrompt(description))})
}

func (e *GeminiEstimator) estimate(ctx context.Context, op string, parts []genai.Part) (*models.RecognitionResult, error) {
	raw, err := e.generate(ctx, parts)
	if err != nil {
		return nil, &EstimationError{Engine: e.Name(), Op: op, Err: err}
	}
	res := ParseEstimatorResponse(raw)
	return &res, nil
}

func (e *GeminiEstimator) openModel(ctx context.Context) (contentGenerator, func(), error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(e.APIKey))
	if err != nil {
		return nil, nil, err
	}
	m := cl.GenerativeModel(e.Model)
	if m == nil {
		cl.Close()
		return nil, nil, fmt.Errorf("gemini: model is nil")
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0.2),
		MaxOutputTokens:  ptrInt32(1500),
		ResponseMIMEType: "application/json",
	}
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(estimatorSystemPrompt)}}
	return m, func() { cl.Close() }, nil
}

func (e *GeminiEstimator) generate(ctx context.Context, parts []genai.Part) (string, error) {
	if e.APIKey == "" {
		return "", errors.New("GEMINI_API_KEY is empty")
	}
	open := e.newModel
	if open == nil {
		open = e.openModel
	}
	m, release, err := open(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	var (
		txt     string
		lastErr error
	)
	err = utils.Retry(ctx, e.Retry, e.Name(), func(int) (int, []byte, error) {
		resp, err := m.GenerateContent(ctx, parts...)
		lastErr = err
		if err != nil {
			status, transport := classifyGeminiError(err)
			if transport {
				return 0, nil, err
			}
			return status, nil, nil
		}
		txt = firstText(resp)
		return 200, nil, nil
	})
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if lastErr != nil {
		return "", lastErr
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(txt) == "" {
		return "", errEmptyCompletion
	}
	return txt, nil
}

// classifyGeminiError maps a failed call onto Retry's model. API errors
// report their HTTP status; network failures count as transport errors.
// Anything else (blocked prompts, bad arguments) gets status 400 so it is
// not retried.
func classifyGeminiError(err error) (status int, transport bool) {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code, false
	}
	var nerr net.Error
	if errors.As(err, &nerr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, true
	}
	return http.StatusBadRequest, false
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }

func ptrInt32(v int32) *int32 { return &v }
