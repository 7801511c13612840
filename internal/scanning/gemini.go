package scanning

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// transcribePrompt asks the vision model for a verbatim transcription
// rather than interpretation, so the output can be fed to the same
// field extraction as Tesseract text.
const transcribePrompt = `You are a transcription engine. Read the receipt image and output every piece of visible text exactly as printed, one line of the receipt per line of output, top to bottom. The receipt may be in any language. Do not translate, summarize, interpret, or add any commentary. Output only the transcribed text.`

// Gemini implements the Engine interface using Google Gemini as a
// hosted vision OCR alternative
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGemini creates a new Gemini Engine instance
func NewGemini(apiKey string, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  client.GenerativeModel(modelName),
	}, nil
}

// Recognize sends the bitmap to Gemini and returns the transcription.
// Language hints are ignored; the model is multilingual by itself.
func (g *Gemini) Recognize(img image.Image, _ []string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", &RecognitionError{Engine: "gemini", Err: fmt.Errorf("encoding bitmap: %w", err)}
	}

	parts := []genai.Part{
		genai.ImageData("png", buf.Bytes()),
		genai.Text(transcribePrompt),
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", &RecognitionError{Engine: "gemini", Err: fmt.Errorf("generating content: %w", err)}
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", &RecognitionError{Engine: "gemini", Err: fmt.Errorf("no response from gemini")}
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	return text.String(), nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
