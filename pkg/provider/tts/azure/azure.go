// Package azure provides an Azure Cognitive Services Speech-backed TTS
// provider. It implements the tts.Synthesizer interface using the single-shot
// REST synthesis endpoint.
package azure

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cuboid-ai/callingbot/pkg/provider/tts"
)

const (
	endpointFmt      = "https://%s.tts.speech.microsoft.com/cognitiveservices/v1"
	defaultOutputFmt = "raw-16khz-16bit-mono-pcm"
	defaultVoice     = "en-GB-LibbyNeural"

	// maxAudioBytes bounds the response body read. 10 MiB of raw 16 kHz PCM
	// is over five minutes of speech, far past the playback cap.
	maxAudioBytes = 10 << 20
)

// Option is a functional option for configuring the Azure Provider.
type Option func(*Provider)

// WithOutputFormat sets the X-Microsoft-OutputFormat header value
// (e.g., "raw-16khz-16bit-mono-pcm", "audio-24khz-48kbitrate-mono-mp3").
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		p.outputFormat = format
	}
}

// WithHTTPClient replaces the HTTP client used for synthesis requests.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// WithEndpoint overrides the synthesis endpoint URL. Used by tests; the
// default is derived from the region.
func WithEndpoint(url string) Option {
	return func(p *Provider) {
		p.endpoint = url
	}
}

// Provider implements tts.Synthesizer backed by the Azure Speech REST API.
type Provider struct {
	apiKey       string
	endpoint     string
	outputFormat string
	httpClient   *http.Client
}

// New creates a new Azure Provider. apiKey and region must be non-empty.
func New(apiKey, region string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("azure: apiKey must not be empty")
	}
	if region == "" {
		return nil, errors.New("azure: region must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		endpoint:     fmt.Sprintf(endpointFmt, region),
		outputFormat: defaultOutputFmt,
		httpClient:   &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Synthesize posts an SSML document to the Azure synthesis endpoint and
// returns the encoded audio response.
func (p *Provider) Synthesize(ctx context.Context, text string, voice string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("azure: text must not be empty")
	}
	if voice == "" {
		voice = defaultVoice
	}

	ssml, err := buildSSML(text, voice)
	if err != nil {
		return nil, fmt.Errorf("azure: build ssml: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(ssml))
	if err != nil {
		return nil, fmt.Errorf("azure: build request: %w", err)
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", p.apiKey)
	req.Header.Set("Content-Type", "application/ssml+xml")
	req.Header.Set("X-Microsoft-OutputFormat", p.outputFormat)
	req.Header.Set("User-Agent", "cuboid-callingbot")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("azure: synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("azure: synthesis failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return nil, fmt.Errorf("azure: read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("azure: synthesis returned no audio")
	}
	return audio, nil
}

// buildSSML constructs the SSML document for a synthesis request. The voice
// name doubles as the xml:lang source (e.g., "en-GB-LibbyNeural" → "en-GB").
func buildSSML(text, voice string) ([]byte, error) {
	var escaped bytes.Buffer
	if err := xml.EscapeText(&escaped, []byte(text)); err != nil {
		return nil, err
	}

	lang := "en-US"
	if parts := strings.SplitN(voice, "-", 3); len(parts) >= 2 {
		lang = parts[0] + "-" + parts[1]
	}

	var doc bytes.Buffer
	fmt.Fprintf(&doc,
		`<speak version='1.0' xml:lang='%s'><voice name='%s'>%s</voice></speak>`,
		lang, voice, escaped.String())
	return doc.Bytes(), nil
}

// Ensure Provider implements tts.Synthesizer at compile time.
var _ tts.Synthesizer = (*Provider)(nil)
