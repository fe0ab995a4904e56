package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"
)

const (
	DefaultPerplexityURL   = "https://api.perplexity.ai/chat/completions"
	DefaultPerplexityModel = "llama-3.1-sonar-small-128k-online"

	ssePrefix     = "data: "
	sseTerminator = "[DONE]"
)

// NewHTTPClient returns a client tuned for long-lived streaming responses.
// There is no overall timeout; the request context bounds the call.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 30 * time.Second,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConns:          10,
			MaxIdleConnsPerHost:   5,
		},
	}
}

// Search streams from the search backend over a chunked HTTP response and
// collects the citations it reports.
type Search struct {
	url    string
	apiKey string
	model  string
	client *http.Client
}

func NewSearch(url, apiKey, model string, client *http.Client) *Search {
	if url == "" {
		url = DefaultPerplexityURL
	}
	if model == "" {
		model = DefaultPerplexityModel
	}
	if client == nil {
		client = NewHTTPClient()
	}
	return &Search{url: url, apiKey: apiKey, model: model, client: client}
}

type searchMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type searchRequest struct {
	Model    string          `json:"model"`
	Messages []searchMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type searchFrame struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Citations []string `json:"citations"`
}

func (s *Search) Stream(ctx context.Context, message string, emit Emit) (Result, error) {
	if s.apiKey == "" {
		return Result{}, errors.New("PERPLEXITY_API_KEY is not set")
	}

	body, err := json.Marshal(searchRequest{
		Model:    s.model,
		Messages: []searchMessage{{Role: "user", Content: message}},
		Stream:   true,
	})
	if err != nil {
		return Result{}, fmt.Errorf("perplexity: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("perplexity: request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("perplexity: do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Result{}, fmt.Errorf("perplexity API error %d: %s", resp.StatusCode, string(errBody))
	}

	var citations []string
	reader := bufio.NewReader(resp.Body)
	for {
		line, readErr := reader.ReadBytes('\n')
		if len(line) > 0 {
			frame, ok := parseSearchLine(line)
			if ok {
				for _, choice := range frame.Choices {
					if choice.Delta.Content == "" {
						continue
					}
					if err := emit(choice.Delta.Content); err != nil {
						return Result{}, err
					}
				}
				if len(frame.Citations) > 0 {
					citations = frame.Citations
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return Result{}, fmt.Errorf("perplexity: read: %w", readErr)
		}
	}

	return Result{Citations: citations}, nil
}

// parseSearchLine decodes one "data: " line. The terminator, non-data lines
// and malformed JSON all report ok=false.
func parseSearchLine(line []byte) (searchFrame, bool) {
	line = bytes.TrimRight(line, "\r\n")
	if !bytes.HasPrefix(line, []byte(ssePrefix)) {
		return searchFrame{}, false
	}
	data := line[len(ssePrefix):]
	if string(bytes.TrimSpace(data)) == sseTerminator {
		return searchFrame{}, false
	}

	var frame searchFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Printf("Skipping malformed perplexity frame: %v", err)
		return searchFrame{}, false
	}
	return frame, true
}
