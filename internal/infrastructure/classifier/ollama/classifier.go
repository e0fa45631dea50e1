// Package ollama asks a local LLM for a document type when the keyword
// classifier cannot decide.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// maxPromptChars bounds how much document text is sent to the model. The
// opening of a document is where type signals live.
const maxPromptChars = 4000

var knownTypes = []string{
	"facture", "contrat", "devis", "bon_commande", "rapport",
	"courrier", "cv", "compte_rendu", "procédure", "manuel",
}

type Classifier struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func New(baseURL, model string) *Classifier {
	return &Classifier{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

func (c *Classifier) ClassifyDocumentType(ctx context.Context, text string) (string, error) {
	raw, err := c.generateJSON(ctx, buildPrompt(text))
	if err != nil {
		return "", err
	}

	var result struct {
		DocumentType string `json:"document_type"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &result); err != nil {
		return "", fmt.Errorf("parse classification json: %w", err)
	}

	candidate := strings.ToLower(strings.TrimSpace(result.DocumentType))
	for _, known := range knownTypes {
		if candidate == known {
			return candidate, nil
		}
	}
	// Anything outside the dictionary is treated as "no decision".
	return "", nil
}

func buildPrompt(text string) string {
	excerpt := text
	if len(excerpt) > maxPromptChars {
		cut := maxPromptChars
		// Back up to a rune boundary so accented French text is never
		// split mid-sequence.
		for cut > 0 && !utf8.RuneStart(excerpt[cut]) {
			cut--
		}
		excerpt = excerpt[:cut]
	}

	var b strings.Builder
	b.WriteString("Tu classifies des documents d'entreprise français.\n")
	b.WriteString("Choisis le type du document parmi: ")
	b.WriteString(strings.Join(knownTypes, ", "))
	b.WriteString(".\n")
	b.WriteString(`Réponds uniquement en JSON: {"document_type": "<type>"} ou {"document_type": ""} si aucun type ne convient.`)
	b.WriteString("\n\nDocument:\n")
	b.WriteString(excerpt)
	return b.String()
}

func (c *Classifier) generateJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal classify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create classify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama classify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", formatHTTPError(resp)
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("decode classify response: %w", err)
	}
	return strings.TrimSpace(response.Response), nil
}

func formatHTTPError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("ollama classify status: %s", resp.Status)
	}
	return fmt.Errorf("ollama classify status: %s: %s", resp.Status, msg)
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
