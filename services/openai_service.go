package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"diettracker/models"
	"diettracker/utils"
)

var errEmptyCompletion = errors.New("empty completion")

// OpenAIEstimator calls the chat completions API with the vision prompt.
type OpenAIEstimator struct {
	apiKey      string
	model       string
	baseURL     string
	client      *http.Client
	retry       utils.RetryConfig
	maxTokens   int
	temperature float64
}

func NewOpenAIEstimator(apiKey, model, baseURL string) *OpenAIEstimator {
	if model == "" {
		model = "gpt-4o"
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIEstimator{
		apiKey:      strings.TrimSpace(apiKey),
		model:       model,
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Timeout: 60 * time.Second},
		retry:       utils.DefaultRetryConfig(),
		maxTokens:   1500,
		temperature: 0.2,
	}
}

func (e *OpenAIEstimator) Name() string { return "openai" }

type chatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (e *OpenAIEstimator) EstimateImage(ctx context.Context, image []byte, mimeType string) (*models.RecognitionResult, error) {
	if len(image) == 0 {
		return nil, &EstimationError{Engine: e.Name(), Op: "image", Err: errors.New("empty image")}
	}
	mimeType = utils.PickMIME(mimeType, "", image)
	user := chatMessage{
		Role: "user",
		Content: []chatContentPart{
			{Type: "text", Text: imageUserPrompt},
			{Type: "image_url", ImageURL: &chatImageURL{URL: utils.MakeDataURL(mimeType, image), Detail: "high"}},
		},
	}
	return e.estimate(ctx, "image", user)
}

func (e *OpenAIEstimator) EstimateText(ctx context.Context, description string) (*models.RecognitionResult, error) {
	return e.estimate(ctx, "text", chatMessage{Role: "user", Content: textUserPrompt(description)})
}

func (e *OpenAIEstimator) estimate(ctx context.Context, op string, user chatMessage) (*models.RecognitionResult, error) {
	raw, err := e.complete(ctx, []chatMessage{{Role: "system", Content: estimatorSystemPrompt}, user})
	if err != nil {
		return nil, &EstimationError{Engine: e.Name(), Op: op, Err: err}
	}
	res := ParseEstimatorResponse(raw)
	return &res, nil
}

func (e *OpenAIEstimator) complete(ctx context.Context, messages []chatMessage) (string, error) {
	if e.apiKey == "" {
		return "", errors.New("OPENAI_API_KEY is empty")
	}
	payload, err := json.Marshal(chatRequest{
		Model:       e.model,
		Messages:    messages,
		MaxTokens:   e.maxTokens,
		Temperature: e.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var (
		status int
		body   []byte
	)
	err = utils.Retry(ctx, e.retry, e.Name(), func(int) (int, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+e.apiKey)

		resp, err := e.client.Do(req)
		if err != nil {
			return 0, nil, err
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return 0, nil, err
		}
		status, body = resp.StatusCode, b
		return status, b, nil
	})
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("openai API error %d: %s", status, truncate(string(body), 300))
	}

	var cr chatResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		return "", errEmptyCompletion
	}
	return cr.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
